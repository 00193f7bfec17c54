package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/models"
	"staybook/internal/pagination"
)

const roomColumns = `r.id, r.host_id, r.title, r.description, r.type, r.location, r.price, r.max_guests, r.created_at, r.updated_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateRoom inserts a room with its amenities and images.
func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO rooms (host_id, title, description, type, location, price, max_guests, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			room.HostID, room.Title, room.Description, room.Type, room.Location, room.Price, room.MaxGuests, now, now,
		)
		if err != nil {
			return classify(err)
		}
		if room.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		room.CreatedAt, room.UpdatedAt = now, now

		if err := setRoomAmenities(ctx, tx, room.ID, room.Amenities); err != nil {
			return err
		}
		for i := range room.Images {
			room.Images[i].RoomID = room.ID
			if err := insertRoomImage(ctx, tx, &room.Images[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRoom loads a room with images (primary first), amenities and the host's public profile.
func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE r.id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, classify(err)
	}

	rooms := []models.Room{*room}
	if err := attachRoomDetails(ctx, db, rooms); err != nil {
		return nil, err
	}
	room = &rooms[0]

	host, err := db.GetUserByID(ctx, room.HostID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if host != nil {
		room.Host = &models.User{ID: host.ID, Name: host.Name, AvatarURL: host.AvatarURL, Bio: host.Bio}
	}
	return room, nil
}

// ListRooms returns one page of rooms matching filter plus the total match count.
func (db *DB) ListRooms(ctx context.Context, filter models.RoomFilter, p pagination.Params) ([]models.Room, int, error) {
	where, args := roomWhere(filter)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms r`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	query := `SELECT ` + roomColumns + ` FROM rooms r` + where +
		fmt.Sprintf(` ORDER BY %s %s, r.id ASC LIMIT ? OFFSET ?`, p.Sort.Column, p.Sort.Direction())
	rows, err := db.QueryContext(ctx, query, append(args, p.Limit, p.From())...)
	if err != nil {
		return nil, 0, classify(err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := attachRoomDetails(ctx, db, rooms); err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

// CountRooms is used by startup seeding to skip a populated catalogue.
func (db *DB) CountRooms(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n)
	return n, classify(err)
}

func roomWhere(f models.RoomFilter) (string, []any) {
	var conds []string
	var args []any

	if q := strings.TrimSpace(f.Query); q != "" {
		like := containsPattern(q)
		conds = append(conds, `(r.title LIKE ? ESCAPE '\' OR r.description LIKE ? ESCAPE '\' OR r.location LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if f.Type != "" {
		conds = append(conds, `r.type = ?`)
		args = append(args, f.Type)
	}
	if f.Location != "" {
		conds = append(conds, `r.location LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(f.Location))
	}
	if f.MinPrice > 0 {
		conds = append(conds, `r.price >= ?`)
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		conds = append(conds, `r.price <= ?`)
		args = append(args, f.MaxPrice)
	}
	if f.HostID > 0 {
		conds = append(conds, `r.host_id = ?`)
		args = append(args, f.HostID)
	}
	for _, name := range f.Amenities {
		conds = append(conds, `EXISTS (SELECT 1 FROM room_amenities ra JOIN amenities a ON a.id = ra.amenity_id
            WHERE ra.room_id = r.id AND a.name = ?)`)
		args = append(args, name)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s literally anywhere in the value.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.HostID, &r.Title, &r.Description, &r.Type, &r.Location, &r.Price, &r.MaxGuests, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRooms(rows *sql.Rows) ([]models.Room, error) {
	defer rows.Close()
	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

// attachRoomDetails fills Images and Amenities for every room with two queries.
func attachRoomDetails(ctx context.Context, q querier, rooms []models.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]any, len(rooms))
	index := make(map[int64]int, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
		index[rooms[i].ID] = i
		rooms[i].Images = []models.RoomImage{}
		rooms[i].Amenities = []string{}
	}
	in := placeholders(len(ids))

	rows, err := q.QueryContext(ctx, `SELECT id, room_id, url, is_primary, created_at FROM room_images
        WHERE room_id IN (`+in+`) ORDER BY is_primary DESC, id ASC`, ids...)
	if err != nil {
		return classify(err)
	}
	for rows.Next() {
		var img models.RoomImage
		if err := rows.Scan(&img.ID, &img.RoomID, &img.URL, &img.IsPrimary, &img.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan room image: %w", err)
		}
		i := index[img.RoomID]
		rooms[i].Images = append(rooms[i].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `SELECT ra.room_id, a.name FROM room_amenities ra
        JOIN amenities a ON a.id = ra.amenity_id
        WHERE ra.room_id IN (`+in+`) ORDER BY a.name`, ids...)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var roomID int64
		var name string
		if err := rows.Scan(&roomID, &name); err != nil {
			return fmt.Errorf("failed to scan amenity: %w", err)
		}
		i := index[roomID]
		rooms[i].Amenities = append(rooms[i].Amenities, name)
	}
	return rows.Err()
}

// setRoomAmenities replaces a room's amenity links, creating amenity names on demand.
func setRoomAmenities(ctx context.Context, tx *sql.Tx, roomID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_amenities WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("clear amenities: %w", err)
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO amenities (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("upsert amenity %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO room_amenities (room_id, amenity_id)
            SELECT ?, id FROM amenities WHERE name = ?
            ON CONFLICT DO NOTHING`, roomID, name); err != nil {
			return fmt.Errorf("link amenity %q: %w", name, err)
		}
	}
	return nil
}

// insertRoomImage stores an image. The first image of a room, or one flagged
// primary, becomes the only primary image.
func insertRoomImage(ctx context.Context, tx *sql.Tx, img *models.RoomImage) error {
	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_images WHERE room_id = ?`, img.RoomID).Scan(&existing); err != nil {
		return fmt.Errorf("count room images: %w", err)
	}
	if existing == 0 {
		img.IsPrimary = true
	}
	if img.IsPrimary && existing > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE room_images SET is_primary = 0 WHERE room_id = ?`, img.RoomID); err != nil {
			return fmt.Errorf("clear primary image: %w", err)
		}
	}

	img.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `INSERT INTO room_images (room_id, url, is_primary, created_at) VALUES (?, ?, ?, ?)`,
		img.RoomID, img.URL, img.IsPrimary, img.CreatedAt)
	if err != nil {
		return classify(err)
	}
	img.ID, err = res.LastInsertId()
	return err
}
