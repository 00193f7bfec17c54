package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"staybook/internal/auth"
	"staybook/internal/domain"
	"staybook/internal/errs"
)

const maxJSONBody = 1 << 20

// appHandler is a route handler that reports failures by returning them.
type appHandler func(w http.ResponseWriter, r *http.Request) error

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// handle adapts an appHandler, rendering any returned error as the error envelope.
func (s *HTTPServer) handle(h appHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.fail(w, r, err)
		}
	})
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := errs.As(err)
	if e.Status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	errs.Write(w, e, s.expose)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(payload)
}

type message struct {
	Message string `json:"message"`
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.BadRequest("request body is required")
		}
		return errs.BadRequest("invalid JSON body").WithDetails(err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.BadRequest("invalid request").WithDetails(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errs.BadRequest("validation failed").WithDetails(strings.Join(fields, "; "))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.BadRequest("invalid " + name)
	}
	return id, nil
}

// caller returns the authenticated principal and its data scope.
func caller(r *http.Request) (*auth.Principal, domain.UserScope, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, nil, errs.Unauthorized("authentication required")
	}
	scope, ok := auth.ScopeFromContext(r.Context())
	if !ok {
		return nil, nil, errs.Unauthorized("authentication required")
	}
	return p, scope, nil
}

// formFile opens the named multipart file of an upload request.
func (s *HTTPServer) formFile(w http.ResponseWriter, r *http.Request, field string) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", errs.BadRequest("upload too large")
		}
		return nil, "", errs.BadRequest("invalid multipart form")
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", errs.BadRequest(field + " file is required")
	}
	return f, hdr.Filename, nil
}

func parseFloat(raw, name string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, errs.BadRequest("invalid " + name)
	}
	return v, nil
}
