package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/errs"
	"staybook/internal/events"
	"staybook/internal/models"
)

const webhookSecret = "whsec_test_secret"

type fakeProcessor struct {
	created  []CheckoutParams
	sessions map[string]*CheckoutSession
	event    *WebhookEvent
	parseErr error
	err      error
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, p)
	return &CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeProcessor) ParseWebhook(_ []byte, _ string) (*WebhookEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type fixture struct {
	db    *database.DB
	user  *models.User
	room  *models.Room
	proc  *fakeProcessor
	pub   *mockPublisher
	mgr   *Manager
	payer Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "payments.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	user := &models.User{Email: "payer@example.com", Name: "Payer", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(ctx, user))
	room := &models.Room{HostID: user.ID, Title: "Loft", Type: "apartment", Location: "Porto", Price: 100, MaxGuests: 2}
	require.NoError(t, db.CreateRoom(ctx, room))

	proc := &fakeProcessor{sessions: map[string]*CheckoutSession{}}
	pub := new(mockPublisher)
	cfg := config.PaymentsConfig{FrontendURL: "https://staybook.example", AppType: "web", Currency: "usd"}
	return &fixture{
		db:    db,
		user:  user,
		room:  room,
		proc:  proc,
		pub:   pub,
		mgr:   NewManager(proc, db, pub, cfg, &logger),
		payer: Customer{UserID: user.ID, Email: user.Email},
	}
}

func (f *fixture) checkoutRequest(amount string) CheckoutRequest {
	return CheckoutRequest{
		Amount: json.Number(amount),
		RoomDetails: RoomDetails{
			ID:        json.Number(fmt.Sprint(f.room.ID)),
			StartDate: "2024-04-10",
			EndDate:   "2024-04-12",
		},
	}
}

func (f *fixture) completedEvent(sessionID string) *WebhookEvent {
	return &WebhookEvent{
		ID:   "evt_1",
		Type: EventCheckoutCompleted,
		Session: &CheckoutSession{
			ID:            sessionID,
			PaymentStatus: "paid",
			AmountTotal:   20000,
			CustomerEmail: f.user.Email,
			Metadata: map[string]string{
				"room_id":    fmt.Sprint(f.room.ID),
				"start_date": "2024-04-10",
				"end_date":   "2024-04-12",
				"user_id":    fmt.Sprint(f.user.ID),
			},
		},
	}
}

func status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return errs.As(err).Status
}

func countBookings(t *testing.T, db *database.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM bookings`).Scan(&n))
	return n
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw   string
		want  float64
		minor int64
		ok    bool
	}{
		{"150.5", 150.5, 15050, true},
		{"200", 200, 20000, true},
		{"0.015", 0.015, 2, true},
		{"0", 0, 0, false},
		{"-5", 0, 0, false},
		{"", 0, 0, false},
		{"abc", 0, 0, false},
		{"999999.99", 999999.99, 99999999, true},
		{"1000000", 0, 0, false},
		{"1e300", 0, 0, false},
		{"0.004", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseAmount(json.Number(tc.raw))
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.minor, ToMinorUnits(got))
		})
	}
}

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t)

	resp, err := f.mgr.CreateCheckout(context.Background(), f.payer, f.checkoutRequest("150.5"))
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Equal(t, "https://checkout.example/cs_test_1", resp.URL)

	require.Len(t, f.proc.created, 1)
	p := f.proc.created[0]
	assert.Equal(t, int64(15050), p.AmountMinor)
	assert.Equal(t, "usd", p.Currency)
	assert.Equal(t, "Loft", p.ProductName)
	assert.Equal(t, f.user.Email, p.CustomerEmail)
	assert.Equal(t, "https://staybook.example/payment/success?session_id={CHECKOUT_SESSION_ID}", p.SuccessURL)
	assert.Equal(t, "https://staybook.example/payment/cancel", p.CancelURL)
	assert.Equal(t, map[string]string{
		"room_id":    fmt.Sprint(f.room.ID),
		"start_date": "2024-04-10",
		"end_date":   "2024-04-12",
		"user_id":    fmt.Sprint(f.user.ID),
	}, p.Metadata)
}

func TestCreateCheckoutMobileAndOverrides(t *testing.T) {
	f := newFixture(t)
	f.mgr.cfg.AppType = "mobile"
	f.mgr.cfg.MobileScheme = "staybook"

	_, err := f.mgr.CreateCheckout(context.Background(), f.payer, f.checkoutRequest("10"))
	require.NoError(t, err)
	assert.Equal(t, "staybook://payment/success?session_id={CHECKOUT_SESSION_ID}", f.proc.created[0].SuccessURL)
	assert.Equal(t, "staybook://payment/cancel", f.proc.created[0].CancelURL)

	req := f.checkoutRequest("10")
	req.SuccessURL = "https://elsewhere.example/ok"
	req.Currency = "EUR"
	_, err = f.mgr.CreateCheckout(context.Background(), f.payer, req)
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.example/ok", f.proc.created[1].SuccessURL)
	assert.Equal(t, "eur", f.proc.created[1].Currency)
}

func TestCreateCheckoutRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "", "-1", "abc"} {
		_, err := f.mgr.CreateCheckout(ctx, f.payer, f.checkoutRequest(amount))
		assert.Equal(t, http.StatusBadRequest, status(err), amount)
	}

	req := f.checkoutRequest("10")
	req.RoomDetails.ID = "999"
	_, err := f.mgr.CreateCheckout(ctx, f.payer, req)
	assert.Equal(t, http.StatusNotFound, status(err))

	req = f.checkoutRequest("10")
	req.RoomDetails.EndDate = req.RoomDetails.StartDate
	_, err = f.mgr.CreateCheckout(ctx, f.payer, req)
	assert.Equal(t, http.StatusBadRequest, status(err))

	f.proc.err = errors.New("stripe down")
	_, err = f.mgr.CreateCheckout(ctx, f.payer, f.checkoutRequest("10"))
	assert.Equal(t, http.StatusInternalServerError, status(err))
	assert.Empty(t, f.proc.created)
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	f := newFixture(t)
	f.proc.parseErr = fmt.Errorf("%w: bad", ErrInvalidSignature)

	err := f.mgr.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, status(err))
	assert.Zero(t, countBookings(t, f.db))
	f.pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
}

func TestHandleWebhookCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.proc.event = f.completedEvent("cs_paid_1")
	f.pub.On("PublishJSON", events.EventBookingPaid, mock.MatchedBy(func(p events.BookingEventPayload) bool {
		return p.Status == models.BookingStatusPaid && p.Source == events.SourceWebhook && p.RoomTitle == "Loft"
	})).Return(nil).Once()

	require.NoError(t, f.mgr.HandleWebhook(ctx, []byte(`{}`), "sig"))
	require.NoError(t, f.mgr.HandleWebhook(ctx, []byte(`{}`), "sig"), "redelivery is acknowledged")
	assert.Equal(t, 1, countBookings(t, f.db))
	f.pub.AssertExpectations(t)

	b, err := f.db.ForUser(f.user.ID).GetBookingBySession(ctx, "cs_paid_1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPaid, b.Status)
	assert.Equal(t, 2, b.Nights)
	assert.Equal(t, 200.0, b.Price)

	stats, err := f.db.GetUserStats(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BookingsCount)
}

func TestHandleWebhookFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := f.completedEvent("cs_unknown_user")
	ev.Session.CustomerEmail = "nobody@example.com"
	f.proc.event = ev
	assert.Equal(t, http.StatusInternalServerError, status(f.mgr.HandleWebhook(ctx, nil, "sig")))

	ev = f.completedEvent("cs_missing_room")
	ev.Session.Metadata["room_id"] = "999"
	f.proc.event = ev
	assert.Equal(t, http.StatusInternalServerError, status(f.mgr.HandleWebhook(ctx, nil, "sig")))

	assert.Zero(t, countBookings(t, f.db))
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	f.proc.event = &WebhookEvent{ID: "evt_2", Type: "payment_intent.created"}

	assert.NoError(t, f.mgr.HandleWebhook(context.Background(), nil, "sig"))
	assert.Zero(t, countBookings(t, f.db))
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	completed := f.completedEvent("cs_paid_2")
	completed.Session.Status = "complete"
	completed.Session.Currency = "usd"
	f.proc.sessions["cs_paid_2"] = completed.Session

	scope := f.db.ForUser(f.user.ID)
	resp, err := f.mgr.Verify(ctx, f.payer, scope, "cs_paid_2")
	require.NoError(t, err)
	assert.Equal(t, "complete", resp.Status)
	assert.Equal(t, "paid", resp.PaymentStatus)
	assert.Equal(t, int64(20000), resp.AmountTotal)
	assert.Nil(t, resp.Booking)

	f.proc.event = completed
	require.NoError(t, f.mgr.HandleWebhook(ctx, nil, "sig"))
	resp, err = f.mgr.Verify(ctx, f.payer, scope, "cs_paid_2")
	require.NoError(t, err)
	require.NotNil(t, resp.Booking)
	assert.Equal(t, "cs_paid_2", resp.Booking.PaymentSessionID)

	_, err = f.mgr.Verify(ctx, Customer{UserID: f.user.ID + 1, Email: "x@example.com"}, scope, "cs_paid_2")
	assert.Equal(t, http.StatusNotFound, status(err))

	_, err = f.mgr.Verify(ctx, f.payer, scope, "cs_missing")
	assert.Equal(t, http.StatusNotFound, status(err))
}

func signPayload(payload []byte, secret string, ts time.Time) string {
	unix := fmt.Sprint(ts.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix + "." + string(payload)))
	return "t=" + unix + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestStripeProcessorParseWebhook(t *testing.T) {
	p := NewStripeProcessor("sk_test", webhookSecret)
	payload := []byte(`{
        "id": "evt_test",
        "object": "event",
        "type": "checkout.session.completed",
        "data": {"object": {
            "id": "cs_test_9",
            "object": "checkout.session",
            "amount_total": 15050,
            "currency": "usd",
            "customer_email": "payer@example.com",
            "payment_status": "paid",
            "status": "complete",
            "metadata": {"room_id": "3", "start_date": "2024-04-10", "end_date": "2024-04-12", "user_id": "1"}
        }}
    }`)

	ev, err := p.ParseWebhook(payload, signPayload(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "cs_test_9", ev.Session.ID)
	assert.Equal(t, int64(15050), ev.Session.AmountTotal)
	assert.Equal(t, "payer@example.com", ev.Session.CustomerEmail)
	assert.Equal(t, "3", ev.Session.Metadata["room_id"])

	_, err = p.ParseWebhook(payload, signPayload(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = p.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeProcessorSessions(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
			_ = r.ParseForm()
			form = r.PostForm
			_, _ = w.Write([]byte(`{"id":"cs_new","object":"checkout.session","url":"https://checkout.stripe.test/cs_new"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/checkout/sessions/cs_new":
			_, _ = w.Write([]byte(`{"id":"cs_new","object":"checkout.session","status":"open","payment_status":"unpaid","amount_total":15050,"currency":"usd"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`))
		}
	}))
	defer srv.Close()

	p := NewStripeProcessor("sk_test", webhookSecret, WithAPIURL(srv.URL))
	ctx := context.Background()

	s, err := p.CreateCheckoutSession(ctx, CheckoutParams{
		AmountMinor:   15050,
		Currency:      "usd",
		ProductName:   "Loft",
		CustomerEmail: "payer@example.com",
		SuccessURL:    "https://staybook.example/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://staybook.example/payment/cancel",
		Metadata:      map[string]string{"room_id": "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_new", s.ID)
	assert.Equal(t, "https://checkout.stripe.test/cs_new", s.URL)
	assert.Equal(t, "15050", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "3", form.Get("metadata[room_id]"))
	assert.Equal(t, "payer@example.com", form.Get("customer_email"))

	got, err := p.GetCheckoutSession(ctx, "cs_new")
	require.NoError(t, err)
	assert.Equal(t, "open", got.Status)
	assert.Equal(t, "unpaid", got.PaymentStatus)
	assert.Equal(t, int64(15050), got.AmountTotal)

	_, err = p.GetCheckoutSession(ctx, "cs_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
