package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staybook/internal/models"
	"staybook/internal/pagination"
)

// AddFavorite stores the (user, room) pair and increments the favorites
// counter in one transaction. A repeated pair yields ErrDuplicate.
func (s *Scope) AddFavorite(ctx context.Context, roomID int64) (*models.Favorite, error) {
	fav := &models.Favorite{UserID: s.userID, RoomID: roomID, CreatedAt: time.Now().UTC()}
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO favorites (user_id, room_id, created_at) VALUES (?, ?, ?)`,
			fav.UserID, fav.RoomID, fav.CreatedAt)
		if err != nil {
			return classify(err)
		}
		if fav.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		return bumpCounter(ctx, tx, s.userID, favoritesCounter, 1)
	})
	if err != nil {
		return nil, err
	}
	return fav, nil
}

// RemoveFavorite deletes the pair and decrements the counter atomically.
func (s *Scope) RemoveFavorite(ctx context.Context, roomID int64) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ? AND room_id = ?`, s.userID, roomID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		return bumpCounter(ctx, tx, s.userID, favoritesCounter, -1)
	})
}

// ListFavorites pages through the bound user's favorites with their rooms.
func (s *Scope) ListFavorites(ctx context.Context, p pagination.Params) ([]models.Favorite, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites f WHERE f.user_id = ?`, s.userID).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	query := `SELECT f.id, f.user_id, f.room_id, f.created_at FROM favorites f WHERE f.user_id = ?` +
		fmt.Sprintf(` ORDER BY %s %s, f.id DESC LIMIT ? OFFSET ?`, p.Sort.Column, p.Sort.Direction())
	rows, err := s.db.QueryContext(ctx, query, s.userID, p.Limit, p.From())
	if err != nil {
		return nil, 0, classify(err)
	}

	var favorites []models.Favorite
	var roomIDs []int64
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.RoomID, &f.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, f)
		roomIDs = append(roomIDs, f.RoomID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	rooms, err := s.db.roomsByID(ctx, roomIDs)
	if err != nil {
		return nil, 0, err
	}
	for i := range favorites {
		favorites[i].Room = rooms[favorites[i].RoomID]
	}
	return favorites, total, nil
}
