package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybook/internal/models"
	"staybook/internal/pagination"
)

const bookingColumns = `b.id, b.user_id, b.room_id, b.start_date, b.end_date, b.nights, b.price, b.status,
    b.payment_session_id, b.created_at, b.updated_at`

// CreateBooking inserts a booking for the bound user and increments their
// booking counter in the same transaction.
func (s *Scope) CreateBooking(ctx context.Context, b *models.Booking) error {
	b.UserID = s.userID
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		return bumpCounter(ctx, tx, b.UserID, bookingsCounter, 1)
	})
}

// GetBooking returns one of the bound user's bookings with its room.
func (s *Scope) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ? AND b.user_id = ?`, id, s.userID)
	b, err := scanBooking(row)
	if err != nil {
		return nil, classify(err)
	}
	bookings := []models.Booking{*b}
	if err := s.db.attachBookingRooms(ctx, bookings); err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

// GetBookingBySession finds the bound user's booking created from a checkout session.
func (s *Scope) GetBookingBySession(ctx context.Context, sessionID string) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b
        WHERE b.payment_session_id = ? AND b.user_id = ?`, sessionID, s.userID)
	b, err := scanBooking(row)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// ListBookings pages through the bound user's bookings. An empty status matches all.
func (s *Scope) ListBookings(ctx context.Context, status string, p pagination.Params) ([]models.Booking, int, error) {
	where := ` WHERE b.user_id = ?`
	args := []any{s.userID}
	if status != "" {
		where += ` AND b.status = ?`
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings b`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings b` + where +
		fmt.Sprintf(` ORDER BY %s %s, b.id DESC LIMIT ? OFFSET ?`, p.Sort.Column, p.Sort.Direction())
	rows, err := s.db.QueryContext(ctx, query, append(args, p.Limit, p.From())...)
	if err != nil {
		return nil, 0, classify(err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.db.attachBookingRooms(ctx, bookings); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// AllBookings returns every booking of the bound user ordered by stay start.
func (s *Scope) AllBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings b
        WHERE b.user_id = ? ORDER BY b.start_date, b.id`, s.userID)
	if err != nil {
		return nil, classify(err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}
	if err := s.db.attachBookingRooms(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Scope) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		status, time.Now().UTC(), id, s.userID)
	return affectedOne(res, err)
}

// DeleteBooking removes the booking and decrements the counter atomically.
func (s *Scope) DeleteBooking(ctx context.Context, id int64) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND user_id = ?`, id, s.userID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		return bumpCounter(ctx, tx, s.userID, bookingsCounter, -1)
	})
}

// CreatePaidBooking records a booking settled through checkout. It runs with
// system privileges because the caller is the payment webhook, not a user.
// A session that already produced a booking is reported with created=false.
func (db *DB) CreatePaidBooking(ctx context.Context, b *models.Booking) (bool, error) {
	if b.PaymentSessionID == "" {
		return false, errors.New("payment session id is required")
	}

	created := false
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE payment_session_id = ?`, b.PaymentSessionID).Scan(&existing)
		if err == nil {
			b.ID = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return classify(err)
		}

		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		created = true
		return bumpCounter(ctx, tx, b.UserID, bookingsCounter, 1)
	})
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return created, err
}

func insertBooking(ctx context.Context, tx *sql.Tx, b *models.Booking) error {
	now := time.Now().UTC()
	if b.Status == "" {
		b.Status = models.BookingStatusActive
	}
	var session sql.NullString
	if b.PaymentSessionID != "" {
		session = sql.NullString{String: b.PaymentSessionID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
        INSERT INTO bookings (user_id, room_id, start_date, end_date, nights, price, status, payment_session_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.RoomID, b.StartDate, b.EndDate, b.Nights, b.Price, b.Status, session, now, now,
	)
	if err != nil {
		return classify(err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var session sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &b.RoomID, &b.StartDate, &b.EndDate, &b.Nights, &b.Price, &b.Status,
		&session, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.PaymentSessionID = session.String
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	defer rows.Close()
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (db *DB) attachBookingRooms(ctx context.Context, bookings []models.Booking) error {
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.RoomID)
	}
	rooms, err := db.roomsByID(ctx, ids)
	if err != nil {
		return err
	}
	for i := range bookings {
		bookings[i].Room = rooms[bookings[i].RoomID]
	}
	return nil
}

// roomsByID loads rooms with details keyed by id. Missing ids are absent from the map.
func (db *DB) roomsByID(ctx context.Context, ids []int64) (map[int64]*models.Room, error) {
	out := make(map[int64]*models.Room, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	seen := make(map[int64]bool, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			args = append(args, id)
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE r.id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, classify(err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, err
	}
	if err := attachRoomDetails(ctx, db, rooms); err != nil {
		return nil, err
	}
	for i := range rooms {
		out[rooms[i].ID] = &rooms[i]
	}
	return out, nil
}
