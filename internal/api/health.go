package api

import (
	"context"
	"net/http"
	"time"

	"staybook/internal/repository"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks"`
}

// handleHealth reports 503 when the database is unreachable. A failing
// redis only degrades the status since token state falls back to memory.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Environment: s.environment, Checks: map[string]string{}}
	code := http.StatusOK

	if err := s.deps.DB.PingContext(ctx); err != nil {
		resp.Checks["database"] = "error: " + err.Error()
		resp.Status = "error"
		code = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = "ok"
	}

	switch {
	case s.deps.Redis == nil:
		resp.Checks["redis"] = "disabled"
	default:
		if err := repository.Ping(ctx, s.deps.Redis); err != nil {
			resp.Checks["redis"] = "error: " + err.Error()
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["redis"] = "ok"
		}
	}

	return writeJSON(w, code, resp)
}
