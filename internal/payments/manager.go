package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/events"
	"staybook/internal/metrics"
	"staybook/internal/models"
	"staybook/internal/service"
)

const sessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type RoomDetails struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
}

// CheckoutRequest accepts amount as a JSON number or a numeric string.
type CheckoutRequest struct {
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	RoomDetails RoomDetails `json:"roomDetails"`
	SuccessURL  string      `json:"successUrl"`
	CancelURL   string      `json:"cancelUrl"`
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type VerifyResponse struct {
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	AmountTotal   int64           `json:"amountTotal"`
	Currency      string          `json:"currency"`
	Booking       *models.Booking `json:"booking,omitempty"`
}

// Customer identifies who is paying.
type Customer struct {
	UserID int64
	Email  string
}

// Manager runs the checkout lifecycle: session creation, webhook
// fulfilment and status checks.
type Manager struct {
	processor Processor
	store     domain.PaymentStore
	events    domain.EventPublisher
	cfg       config.PaymentsConfig
	logger    zerolog.Logger
}

func NewManager(processor Processor, store domain.PaymentStore, eventBus domain.EventPublisher, cfg config.PaymentsConfig, logger *zerolog.Logger) *Manager {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "payments").Logger()
	}
	return &Manager{processor: processor, store: store, events: eventBus, cfg: cfg, logger: l}
}

// MaxAmount is the largest single charge Stripe accepts, in major units.
const MaxAmount = 999999.99

// ParseAmount validates a major-unit amount. It must be a positive finite
// number of at least one minor unit and at most MaxAmount.
func ParseAmount(raw json.Number) (float64, error) {
	if strings.TrimSpace(raw.String()) == "" {
		return 0, errors.New("amount is required")
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", raw.String())
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, errors.New("amount must be greater than zero")
	}
	if amount > MaxAmount {
		return 0, fmt.Errorf("amount must not exceed %.2f", MaxAmount)
	}
	if ToMinorUnits(amount) < 1 {
		return 0, errors.New("amount rounds to zero")
	}
	return amount, nil
}

// ToMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateCheckout opens a processor session for a room stay.
func (m *Manager) CreateCheckout(ctx context.Context, c Customer, req CheckoutRequest) (*CheckoutResponse, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, errs.BadRequest("invalid amount").WithDetails(err.Error())
	}

	roomID, err := req.RoomDetails.ID.Int64()
	if err != nil || roomID <= 0 {
		return nil, errs.BadRequest("roomDetails.id is required")
	}
	start, err := service.ParseStayDate(req.RoomDetails.StartDate)
	if err != nil {
		return nil, errs.BadRequest("invalid roomDetails.startDate")
	}
	end, err := service.ParseStayDate(req.RoomDetails.EndDate)
	if err != nil {
		return nil, errs.BadRequest("invalid roomDetails.endDate")
	}
	if service.Nights(start, end) <= 0 {
		return nil, errs.BadRequest("endDate must be after startDate")
	}

	room, err := m.store.GetRoom(ctx, roomID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errs.NotFound("room not found")
	}
	if err != nil {
		return nil, errs.Internal("failed to load room", err)
	}

	name := strings.TrimSpace(req.RoomDetails.Name)
	if name == "" {
		name = room.Title
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = m.cfg.Currency
	}
	successURL, cancelURL := m.redirectURLs()
	if req.SuccessURL != "" {
		successURL = req.SuccessURL
	}
	if req.CancelURL != "" {
		cancelURL = req.CancelURL
	}

	s, err := m.processor.CreateCheckoutSession(ctx, CheckoutParams{
		AmountMinor:   ToMinorUnits(amount),
		Currency:      currency,
		ProductName:   name,
		CustomerEmail: c.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Metadata: map[string]string{
			"room_id":    strconv.FormatInt(roomID, 10),
			"start_date": start.Format(models.DateLayout),
			"end_date":   end.Format(models.DateLayout),
			"user_id":    strconv.FormatInt(c.UserID, 10),
		},
	})
	if err != nil {
		return nil, errs.Internal("failed to create checkout session", err)
	}

	m.logger.Info().Str("session_id", s.ID).Int64("user_id", c.UserID).Int64("room_id", roomID).Msg("checkout session created")
	return &CheckoutResponse{SessionID: s.ID, URL: s.URL}, nil
}

// redirectURLs builds the default success and cancel targets. Mobile apps
// are sent back through their custom scheme.
func (m *Manager) redirectURLs() (string, string) {
	base := m.cfg.FrontendURL
	if m.cfg.AppType == "mobile" {
		base = strings.TrimSuffix(m.cfg.MobileScheme, "://") + ":/"
	}
	return base + "/payment/success?session_id=" + sessionPlaceholder, base + "/payment/cancel"
}

// HandleWebhook verifies and applies one processor event. A bad signature
// is a 400 with nothing written; a fulfilment failure is a 500 so the
// processor redelivers.
func (m *Manager) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := m.processor.ParseWebhook(payload, signature)
	if err != nil {
		metrics.IncWebhook("unknown", "rejected")
		m.logger.Warn().Err(err).Msg("webhook rejected")
		if errors.Is(err, ErrInvalidSignature) {
			return errs.BadRequest("webhook signature verification failed")
		}
		return errs.BadRequest("invalid webhook payload")
	}

	if ev.Type != EventCheckoutCompleted || ev.Session == nil {
		metrics.IncWebhook(ev.Type, "ignored")
		return nil
	}

	if err := m.fulfil(ctx, ev.Session); err != nil {
		metrics.IncWebhook(ev.Type, "failed")
		m.logger.Error().Err(err).Str("event_id", ev.ID).Str("session_id", ev.Session.ID).Msg("checkout fulfilment failed")
		return errs.Internal("failed to process checkout", err)
	}
	metrics.IncWebhook(ev.Type, "processed")
	return nil
}

// fulfil records the paid booking. A session that already produced a
// booking is acknowledged without a second write.
func (m *Manager) fulfil(ctx context.Context, s *CheckoutSession) error {
	if s.CustomerEmail == "" {
		return errors.New("session has no customer email")
	}
	user, err := m.store.GetUserByEmail(ctx, s.CustomerEmail)
	if err != nil {
		return fmt.Errorf("resolve customer %s: %w", s.CustomerEmail, err)
	}

	roomID, err := strconv.ParseInt(s.Metadata["room_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("metadata room_id: %w", err)
	}
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load room %d: %w", roomID, err)
	}
	start, err := service.ParseStayDate(s.Metadata["start_date"])
	if err != nil {
		return fmt.Errorf("metadata start_date: %w", err)
	}
	end, err := service.ParseStayDate(s.Metadata["end_date"])
	if err != nil {
		return fmt.Errorf("metadata end_date: %w", err)
	}

	nights, price := service.Quote(room.Price, start, end)
	if nights <= 0 {
		return fmt.Errorf("invalid stay %s..%s", s.Metadata["start_date"], s.Metadata["end_date"])
	}
	if s.AmountTotal > 0 {
		price = float64(s.AmountTotal) / 100
	}

	b := &models.Booking{
		UserID:           user.ID,
		RoomID:           room.ID,
		StartDate:        start,
		EndDate:          end,
		Nights:           nights,
		Price:            price,
		Status:           models.BookingStatusPaid,
		PaymentSessionID: s.ID,
	}
	created, err := m.store.CreatePaidBooking(ctx, b)
	if err != nil {
		return fmt.Errorf("create paid booking: %w", err)
	}
	if !created {
		m.logger.Info().Str("session_id", s.ID).Msg("checkout already fulfilled")
		return nil
	}

	b.Room = room
	metrics.IncBooking(events.SourceWebhook)
	if m.events != nil {
		if err := m.events.PublishJSON(events.EventBookingPaid, events.NewBookingPayload(b, events.SourceWebhook)); err != nil {
			m.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("publish event error")
		}
	}
	m.logger.Info().Int64("booking_id", b.ID).Str("session_id", s.ID).Msg("paid booking created")
	return nil
}

// Verify reports a session's payment state to the customer who opened it,
// with the booking it produced when there is one.
func (m *Manager) Verify(ctx context.Context, c Customer, bookings domain.BookingStore, sessionID string) (*VerifyResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errs.BadRequest("session id is required")
	}
	s, err := m.processor.GetCheckoutSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, errs.NotFound("checkout session not found")
	}
	if err != nil {
		return nil, errs.Internal("failed to retrieve checkout session", err)
	}
	if !ownsSession(c, s) {
		return nil, errs.NotFound("checkout session not found")
	}

	resp := &VerifyResponse{
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
		AmountTotal:   s.AmountTotal,
		Currency:      s.Currency,
	}
	b, err := bookings.GetBookingBySession(ctx, s.ID)
	switch {
	case err == nil:
		resp.Booking = b
	case !errors.Is(err, database.ErrNotFound):
		return nil, errs.Internal("failed to load booking", err)
	}
	return resp, nil
}

func ownsSession(c Customer, s *CheckoutSession) bool {
	if uid, ok := s.Metadata["user_id"]; ok {
		return uid == strconv.FormatInt(c.UserID, 10)
	}
	return strings.EqualFold(s.CustomerEmail, c.Email)
}
