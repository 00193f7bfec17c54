package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"staybook/internal/auth"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/errs"
	"staybook/internal/payments"
	"staybook/internal/service"
	"staybook/internal/settings"
)

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	DB            *database.DB
	Redis         *redis.Client
	Authenticator *auth.Authenticator
	Auth          *auth.Service
	Settings      *settings.Service
	Rooms         *service.RoomService
	Bookings      *service.BookingService
	Favorites     *service.FavoriteService
	Collections   *service.CollectionService
	Users         *service.UserService
	Payments      *payments.Manager
	// UploadDir is served under the storage public base URL when that is a path.
	UploadDir string
}

// HTTPServer exposes the booking API.
type HTTPServer struct {
	deps          Deps
	authenticator *auth.Authenticator
	server        *http.Server
	limiter       *rateLimiter
	corsOrigins   []string
	maxUpload     int64
	expose        bool
	environment   string
	logger        zerolog.Logger
	done          chan struct{}
}

func NewHTTPServer(cfg *config.Config, deps Deps, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}

	s := &HTTPServer{
		deps:          deps,
		authenticator: deps.Authenticator,
		limiter:       newRateLimiter(cfg.RateLimit),
		corsOrigins:   cfg.HTTP.CORSOrigins,
		maxUpload:     cfg.HTTP.MaxUploadBytes,
		expose:        cfg.App.IsDevelopment(),
		environment:   cfg.App.Environment,
		logger:        l,
		done:          make(chan struct{}),
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 10 << 20
	}

	mux := http.NewServeMux()
	s.routes(mux, cfg.Storage.PublicBaseURL)

	var handler http.Handler = s.unmatched(mux)
	handler = s.rateLimit(handler)
	handler = s.cors(handler)
	handler = s.accessLog(handler)
	handler = s.recoverer(handler)
	handler = s.requestID(handler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return s
}

func (s *HTTPServer) routes(mux *http.ServeMux, publicBaseURL string) {
	public := func(pattern string, h appHandler) {
		mux.Handle(pattern, instrument(pattern, s.handle(h)))
	}
	private := func(pattern string, h appHandler) {
		mux.Handle(pattern, instrument(pattern, s.protected(s.handle(h))))
	}

	public("GET /api/health", s.handleHealth)

	public("POST /api/auth/register", s.handleRegister)
	public("POST /api/auth/login", s.handleLogin)
	private("POST /api/auth/logout", s.handleLogout)
	private("GET /api/auth/me", s.handleMe)
	private("GET /api/auth/verify-token", s.handleVerifyToken)

	private("GET /api/users/{id}", s.handleGetUser)
	private("PUT /api/users/{id}", s.handleUpdateUser)
	private("POST /api/users/{id}/profile-image", s.handleProfileImage)

	public("GET /api/rooms", s.handleListRooms)
	public("GET /api/rooms/search", s.handleSearchRooms)
	public("GET /api/rooms/{id}", s.handleGetRoom)
	private("POST /api/rooms", s.handleCreateRoom)
	private("PUT /api/rooms/{id}", s.handleUpdateRoom)
	private("DELETE /api/rooms/{id}", s.handleDeleteRoom)
	private("POST /api/rooms/{id}/images", s.handleRoomImage)

	private("GET /api/favorites", s.handleListFavorites)
	private("POST /api/favorites", s.handleAddFavorite)
	private("DELETE /api/favorites/{roomId}", s.handleRemoveFavorite)

	private("GET /api/collections", s.handleListCollections)
	private("POST /api/collections", s.handleCreateCollection)
	private("GET /api/collections/{id}", s.handleGetCollection)
	private("PUT /api/collections/{id}", s.handleUpdateCollection)
	private("DELETE /api/collections/{id}", s.handleDeleteCollection)

	private("GET /api/bookings", s.handleListBookings)
	private("POST /api/bookings", s.handleCreateBooking)
	private("GET /api/bookings/export", s.handleExportBookings)
	private("GET /api/bookings/{id}", s.handleGetBooking)
	private("PUT /api/bookings/{id}/cancel", s.handleCancelBooking)
	private("DELETE /api/bookings/{id}", s.handleDeleteBooking)

	private("GET /api/settings", s.handleGetSettings)
	private("PUT /api/settings", s.handleUpdateSettings)
	private("GET /api/settings/user/{userId}", s.handleGetUserSettings)

	private("POST /api/payments/create-checkout-session", s.handleCreateCheckout)
	public("POST /api/payments/webhook", s.handleWebhook)
	private("GET /api/payments/verify-payment/{sessionId}", s.handleVerifyPayment)

	if s.deps.UploadDir != "" && strings.HasPrefix(publicBaseURL, "/") {
		prefix := strings.TrimRight(publicBaseURL, "/") + "/"
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(s.deps.UploadDir))))
	}
}

// unmatched renders the mux's own 404 and 405 replies as JSON error envelopes.
// The Allow header of a 405 is kept.
func (s *HTTPServer) unmatched(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}

		rec := &discardWriter{header: http.Header{}, status: http.StatusNotFound}
		h.ServeHTTP(rec, r)
		if allow := rec.header.Get("Allow"); allow != "" {
			w.Header().Set("Allow", allow)
		}
		msg := "route not found"
		if rec.status == http.StatusMethodNotAllowed {
			msg = "method not allowed"
		}
		s.fail(w, r, errs.New(rec.status, msg))
	})
}

// discardWriter records the status and headers a handler sets and drops the body.
type discardWriter struct {
	header http.Header
	status int
}

func (d *discardWriter) Header() http.Header         { return d.header }
func (d *discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (d *discardWriter) WriteHeader(status int)      { d.status = status }

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	if s.limiter != nil {
		go s.sweepLimiter(time.Minute)
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) sweepLimiter(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.limiter.sweep()
		}
	}
}
