package api

import (
	"errors"
	"io"
	"net/http"

	"staybook/internal/errs"
	"staybook/internal/payments"
)

const maxWebhookBody = 64 << 10

func (s *HTTPServer) handleCreateCheckout(w http.ResponseWriter, r *http.Request) error {
	p, _, err := caller(r)
	if err != nil {
		return err
	}
	var req payments.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	resp, err := s.deps.Payments.CreateCheckout(r.Context(), payments.Customer{UserID: p.ID, Email: p.Email}, req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, resp)
}

// handleWebhook verifies the signature over the raw body, so the body is
// read as is and never decoded first.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) error {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.BadRequest("payload too large")
		}
		return errs.BadRequest("failed to read body")
	}
	if err := s.deps.Payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *HTTPServer) handleVerifyPayment(w http.ResponseWriter, r *http.Request) error {
	p, scope, err := caller(r)
	if err != nil {
		return err
	}
	resp, err := s.deps.Payments.Verify(r.Context(), payments.Customer{UserID: p.ID, Email: p.Email}, scope, r.PathValue("sessionId"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, resp)
}
