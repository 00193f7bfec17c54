package api

import (
	"net/http"
	"strconv"
	"time"

	"staybook/internal/export"
	"staybook/internal/pagination"
	"staybook/internal/service"
)

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	var req service.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	b, err := s.deps.Bookings.Create(r.Context(), scope, req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	q := r.URL.Query()
	p, err := pagination.Parse(q, service.BookingSort)
	if err != nil {
		return err
	}
	env, err := s.deps.Bookings.List(r.Context(), scope, q.Get("status"), p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, env)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	b, err := s.deps.Bookings.Get(r.Context(), scope, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	b, err := s.deps.Bookings.Cancel(r.Context(), scope, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Bookings.Delete(r.Context(), scope, id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, message{Message: "booking deleted"})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) error {
	_, scope, err := caller(r)
	if err != nil {
		return err
	}
	data, err := s.deps.Bookings.Export(r.Context(), scope)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}
