package models

import "time"

type Booking struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	RoomID           int64     `json:"room_id"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Nights           int       `json:"nights"`
	Price            float64   `json:"price"`
	Status           string    `json:"status"` // active, cancelled, paid
	PaymentSessionID string    `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Room             *Room     `json:"room,omitempty"`
}

// IsCancelled reports whether the booking can no longer change state.
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}
