package api

import (
	"net/http"

	"staybook/internal/auth"
	"staybook/internal/errs"
)

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	session, err := s.deps.Auth.Register(r.Context(), req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, session)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	session, err := s.deps.Auth.Login(r.Context(), req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) error {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return errs.Unauthorized("authentication required")
	}
	if err := s.deps.Auth.Logout(r.Context(), p); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, message{Message: "logged out"})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) error {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return errs.Unauthorized("authentication required")
	}
	user, err := s.deps.Auth.Me(r.Context(), p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleVerifyToken answers with the same principal the middleware resolved,
// so its id always matches /me.
func (s *HTTPServer) handleVerifyToken(w http.ResponseWriter, r *http.Request) error {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return errs.Unauthorized("authentication required")
	}
	return writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": p})
}
