package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

var _ domain.UserScope = (*Scope)(nil)

// Scope is a per-request handle bound to one authenticated user. Every
// owner-restricted statement issued through it filters on that user's id,
// so a caller can only ever see or change their own rows.
type Scope struct {
	db     *DB
	userID int64
}

// ForUser returns a handle bound to userID. Create one per request.
func (db *DB) ForUser(userID int64) *Scope {
	return &Scope{db: db, userID: userID}
}

func (s *Scope) UserID() int64 {
	return s.userID
}

// Profile returns the bound user with stats.
func (s *Scope) Profile(ctx context.Context) (*models.User, error) {
	user, err := s.db.GetUserByID(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if user.Stats, err = s.db.GetUserStats(ctx, s.userID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Scope) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE users SET
            name = COALESCE(?, name),
            phone = COALESCE(?, phone),
            bio = COALESCE(?, bio),
            updated_at = ?
        WHERE id = ?`,
		upd.Name, upd.Phone, upd.Bio, time.Now().UTC(), s.userID)
	return affectedOne(res, err)
}

func (s *Scope) SetAvatar(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), s.userID)
	return affectedOne(res, err)
}

// UpdateRoom rewrites a room the bound user hosts. Amenities are replaced
// only when room.Amenities is non-nil.
func (s *Scope) UpdateRoom(ctx context.Context, room *models.Room) error {
	now := time.Now().UTC()
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE rooms SET title = ?, description = ?, type = ?, location = ?, price = ?, max_guests = ?, updated_at = ?
            WHERE id = ? AND host_id = ?`,
			room.Title, room.Description, room.Type, room.Location, room.Price, room.MaxGuests, now,
			room.ID, s.userID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		room.UpdatedAt = now
		if room.Amenities != nil {
			return setRoomAmenities(ctx, tx, room.ID, room.Amenities)
		}
		return nil
	})
}

func (s *Scope) DeleteRoom(ctx context.Context, roomID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ? AND host_id = ?`, roomID, s.userID)
	return affectedOne(res, err)
}

// AddRoomImage attaches an image to a room the bound user hosts.
func (s *Scope) AddRoomImage(ctx context.Context, img *models.RoomImage) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		var hostID int64
		err := tx.QueryRowContext(ctx, `SELECT host_id FROM rooms WHERE id = ?`, img.RoomID).Scan(&hostID)
		if err != nil {
			return classify(err)
		}
		if hostID != s.userID {
			return ErrNotFound
		}
		return insertRoomImage(ctx, tx, img)
	})
}

// affectedOne turns "no rows changed" into ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
