package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staybook/internal/models"
	"staybook/internal/pagination"
)

const collectionColumns = `c.id, c.user_id, c.name, c.description, c.created_at, c.updated_at,
    (SELECT COUNT(*) FROM collection_rooms cr WHERE cr.collection_id = c.id)`

func (s *Scope) CreateCollection(ctx context.Context, c *models.Collection, roomIDs []int64) error {
	now := time.Now().UTC()
	c.UserID = s.userID
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO collections (user_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			c.UserID, c.Name, c.Description, now, now)
		if err != nil {
			return classify(err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		c.CreatedAt, c.UpdatedAt = now, now
		if err := setCollectionRooms(ctx, tx, c.ID, roomIDs); err != nil {
			return err
		}
		c.RoomCount = len(uniqueIDs(roomIDs))
		return nil
	})
}

func (s *Scope) GetCollection(ctx context.Context, id int64) (*models.Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections c WHERE c.id = ? AND c.user_id = ?`, id, s.userID)
	c, err := scanCollection(row)
	if err != nil {
		return nil, classify(err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT room_id FROM collection_rooms WHERE collection_id = ? ORDER BY added_at, room_id`, c.ID)
	if err != nil {
		return nil, classify(err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan collection room: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rooms, err := s.db.roomsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.Rooms = make([]models.Room, 0, len(ids))
	for _, id := range ids {
		if r, ok := rooms[id]; ok {
			c.Rooms = append(c.Rooms, *r)
		}
	}
	return c, nil
}

func (s *Scope) ListCollections(ctx context.Context, p pagination.Params) ([]models.Collection, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections c WHERE c.user_id = ?`, s.userID).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	query := `SELECT ` + collectionColumns + ` FROM collections c WHERE c.user_id = ?` +
		fmt.Sprintf(` ORDER BY %s %s, c.id DESC LIMIT ? OFFSET ?`, p.Sort.Column, p.Sort.Direction())
	rows, err := s.db.QueryContext(ctx, query, s.userID, p.Limit, p.From())
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan collection: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (s *Scope) UpdateCollection(ctx context.Context, id int64, upd models.CollectionUpdate) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE collections SET name = COALESCE(?, name), description = COALESCE(?, description), updated_at = ?
            WHERE id = ? AND user_id = ?`,
			upd.Name, upd.Description, time.Now().UTC(), id, s.userID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		if upd.RoomIDs != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM collection_rooms WHERE collection_id = ?`, id); err != nil {
				return fmt.Errorf("clear collection rooms: %w", err)
			}
			return setCollectionRooms(ctx, tx, id, upd.RoomIDs)
		}
		return nil
	})
}

func (s *Scope) DeleteCollection(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ? AND user_id = ?`, id, s.userID)
	return affectedOne(res, err)
}

func setCollectionRooms(ctx context.Context, tx *sql.Tx, collectionID int64, roomIDs []int64) error {
	now := time.Now().UTC()
	for _, roomID := range uniqueIDs(roomIDs) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO collection_rooms (collection_id, room_id, added_at) VALUES (?, ?, ?)`,
			collectionID, roomID, now); err != nil {
			return classify(err)
		}
	}
	return nil
}

func scanCollection(row rowScanner) (*models.Collection, error) {
	var c models.Collection
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.RoomCount); err != nil {
		return nil, err
	}
	return &c, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
