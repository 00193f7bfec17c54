package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staybook/internal/models"
)

const userColumns = `u.id, u.email, u.name, u.phone, u.bio, u.avatar_url, u.password_hash, u.created_at, u.updated_at`

// CreateUser inserts the user together with a zeroed stats row.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO users (email, name, phone, bio, avatar_url, password_hash, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.Email, user.Name, user.Phone, user.Bio, user.AvatarURL, user.PasswordHash, now, now,
		)
		if err != nil {
			return classify(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_stats (user_id) VALUES (?)`, id); err != nil {
			return classify(err)
		}
		user.ID = id
		user.CreatedAt = now
		user.UpdatedAt = now
		user.Stats = &models.UserStats{UserID: id}
		return nil
	})
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = ?`, email)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	row := db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		return nil, classify(err)
	}
	return user, nil
}

// GetUserStats returns the counters row, or zeros when none exists yet.
func (db *DB) GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	stats := &models.UserStats{UserID: userID}
	err := db.QueryRowContext(ctx,
		`SELECT bookings_count, favorites_count, reviews_count FROM user_stats WHERE user_id = ?`, userID,
	).Scan(&stats.BookingsCount, &stats.FavoritesCount, &stats.ReviewsCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return nil, classify(err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Bio, &u.AvatarURL, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type counter string

const (
	bookingsCounter  counter = "bookings_count"
	favoritesCounter counter = "favorites_count"
)

// bumpCounter adjusts a user_stats counter in SQL inside the caller's
// transaction, creating the row if needed. Counts never drop below zero.
func bumpCounter(ctx context.Context, tx *sql.Tx, userID int64, c counter, delta int) error {
	col := string(c)
	var err error
	if delta > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_stats (user_id, `+col+`) VALUES (?, ?)
             ON CONFLICT(user_id) DO UPDATE SET `+col+` = `+col+` + excluded.`+col,
			userID, delta)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE user_stats SET `+col+` = MAX(`+col+` + ?, 0) WHERE user_id = ?`,
			delta, userID)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", col, err)
	}
	return nil
}
