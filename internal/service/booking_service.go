package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/events"
	"staybook/internal/export"
	"staybook/internal/metrics"
	"staybook/internal/models"
	"staybook/internal/pagination"
)

type CreateBookingRequest struct {
	RoomID    int64  `json:"room_id" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

const day = 24 * time.Hour

// ParseStayDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseStayDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(models.DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Nights counts started 24-hour periods between start and end. It is zero
// when end is not after start.
func Nights(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int((d + day - 1) / day)
}

// Quote prices a stay at the room's nightly rate, rounded to cents.
func Quote(nightly float64, start, end time.Time) (int, float64) {
	nights := Nights(start, end)
	return nights, math.Round(nightly*float64(nights)*100) / 100
}

type BookingService struct {
	rooms  domain.RoomCatalog
	events domain.EventPublisher
	logger zerolog.Logger
}

func NewBookingService(rooms domain.RoomCatalog, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "bookings").Logger()
	}
	return &BookingService{rooms: rooms, events: eventBus, logger: l}
}

// Create books a room for the store's user at room price times nights.
func (s *BookingService) Create(ctx context.Context, store domain.BookingStore, req CreateBookingRequest) (*models.Booking, error) {
	start, err := ParseStayDate(req.StartDate)
	if err != nil {
		return nil, errs.BadRequest("invalid start_date").WithDetails(err.Error())
	}
	end, err := ParseStayDate(req.EndDate)
	if err != nil {
		return nil, errs.BadRequest("invalid end_date").WithDetails(err.Error())
	}

	room, err := s.rooms.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, storeError(err, "room not found")
	}

	nights, price := Quote(room.Price, start, end)
	if nights <= 0 {
		return nil, errs.BadRequest("end_date must be after start_date")
	}

	b := &models.Booking{
		RoomID:    room.ID,
		StartDate: start,
		EndDate:   end,
		Nights:    nights,
		Price:     price,
		Status:    models.BookingStatusActive,
	}
	if err := store.CreateBooking(ctx, b); err != nil {
		return nil, storeError(err, "room not found")
	}
	b.Room = room

	metrics.IncBooking(events.SourceAPI)
	s.publish(events.EventBookingCreated, b)
	s.logger.Info().Int64("booking_id", b.ID).Int64("room_id", room.ID).Int("nights", nights).Msg("booking created")
	return b, nil
}

func (s *BookingService) Get(ctx context.Context, store domain.BookingStore, id int64) (*models.Booking, error) {
	b, err := store.GetBooking(ctx, id)
	if err != nil {
		return nil, storeError(err, "booking not found")
	}
	return b, nil
}

// List pages through the user's bookings, optionally filtered by status.
func (s *BookingService) List(ctx context.Context, store domain.BookingStore, status string, p pagination.Params) (pagination.Envelope[models.Booking], error) {
	switch status {
	case "", models.BookingStatusActive, models.BookingStatusCancelled, models.BookingStatusPaid:
	default:
		return pagination.Envelope[models.Booking]{}, errs.BadRequest("invalid status filter")
	}
	bookings, total, err := store.ListBookings(ctx, status, p)
	if err != nil {
		return pagination.Envelope[models.Booking]{}, storeError(err, "booking not found")
	}
	return pagination.Wrap(bookings, total, p), nil
}

// Cancel marks an active or paid booking cancelled.
func (s *BookingService) Cancel(ctx context.Context, store domain.BookingStore, id int64) (*models.Booking, error) {
	b, err := s.Get(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if b.IsCancelled() {
		return nil, errs.BadRequest("booking is already cancelled")
	}
	if err := store.UpdateBookingStatus(ctx, id, models.BookingStatusCancelled); err != nil {
		return nil, storeError(err, "booking not found")
	}
	b.Status = models.BookingStatusCancelled
	s.publish(events.EventBookingCancelled, b)
	return b, nil
}

func (s *BookingService) Delete(ctx context.Context, store domain.BookingStore, id int64) error {
	b, err := s.Get(ctx, store, id)
	if err != nil {
		return err
	}
	if err := store.DeleteBooking(ctx, id); err != nil {
		return storeError(err, "booking not found")
	}
	s.publish(events.EventBookingDeleted, b)
	return nil
}

// Export renders every booking of the user as an XLSX workbook.
func (s *BookingService) Export(ctx context.Context, store domain.BookingStore) ([]byte, error) {
	bookings, err := store.AllBookings(ctx)
	if err != nil {
		return nil, storeError(err, "booking not found")
	}
	data, err := export.Bookings(bookings)
	if err != nil {
		return nil, errs.Internal("failed to build export", err)
	}
	return data, nil
}

func (s *BookingService) publish(eventType string, b *models.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, events.NewBookingPayload(b, events.SourceAPI)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}
