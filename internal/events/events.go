package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingPaid      = "booking_paid"
	EventBookingCancelled = "booking_cancelled"
	EventBookingDeleted   = "booking_deleted"
)

// Booking sources recorded on events and metrics.
const (
	SourceAPI     = "api"
	SourceWebhook = "webhook"
)

// BookingEventPayload is the booking snapshot handed to event consumers.
type BookingEventPayload struct {
	BookingID int64     `json:"booking_id"`
	UserID    int64     `json:"user_id"`
	RoomID    int64     `json:"room_id"`
	RoomTitle string    `json:"room_title"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Nights    int       `json:"nights"`
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
}

// NewBookingPayload snapshots b. RoomTitle is empty when the room is not loaded.
func NewBookingPayload(b *models.Booking, source string) BookingEventPayload {
	p := BookingEventPayload{
		BookingID: b.ID,
		UserID:    b.UserID,
		RoomID:    b.RoomID,
		Status:    b.Status,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		Nights:    b.Nights,
		Price:     b.Price,
		Source:    source,
	}
	if b.Room != nil {
		p.RoomTitle = b.Room.Title
	}
	return p
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events. Handlers run synchronously
// on the publisher's goroutine; a failing handler is logged and does not stop
// the others.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

func NewEventBus(logger *zerolog.Logger) *EventBus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: l}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
