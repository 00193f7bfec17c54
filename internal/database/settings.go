package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"staybook/internal/models"
)

// GetSettings returns the bound user's stored settings row as a patch.
// ErrNotFound means no row; ErrTableMissing means the table is absent.
func (s *Scope) GetSettings(ctx context.Context) (*models.SettingsPatch, error) {
	var notifications, privacy, security, currency, theme, language, timezone sql.NullString
	err := s.db.QueryRowContext(ctx, `
        SELECT notifications, privacy, security, currency, theme, language, timezone
        FROM user_settings WHERE user_id = ?`, s.userID,
	).Scan(&notifications, &privacy, &security, &currency, &theme, &language, &timezone)
	if err != nil {
		return nil, classify(err)
	}

	var p models.SettingsPatch
	if err := decodeJSONColumn(notifications, &p.Notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	if err := decodeJSONColumn(privacy, &p.Privacy); err != nil {
		return nil, fmt.Errorf("decode privacy: %w", err)
	}
	if err := decodeJSONColumn(security, &p.Security); err != nil {
		return nil, fmt.Errorf("decode security: %w", err)
	}
	p.Currency = nullableString(currency)
	p.Theme = nullableString(theme)
	p.Language = nullableString(language)
	p.Timezone = nullableString(timezone)
	return &p, nil
}

// UpdateSettings overwrites the bound user's row and reports rows affected.
func (s *Scope) UpdateSettings(ctx context.Context, p models.SettingsPatch) (int64, error) {
	args, err := settingsArgs(p)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE user_settings SET notifications = ?, privacy = ?, security = ?, currency = ?, theme = ?,
            language = ?, timezone = ?, updated_at = ?
        WHERE user_id = ?`,
		append(args, time.Now().UTC(), s.userID)...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// UpsertSettings inserts the row or replaces an existing one.
func (s *Scope) UpsertSettings(ctx context.Context, p models.SettingsPatch) error {
	args, err := settingsArgs(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO user_settings (notifications, privacy, security, currency, theme, language, timezone, updated_at, user_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            notifications = excluded.notifications,
            privacy = excluded.privacy,
            security = excluded.security,
            currency = excluded.currency,
            theme = excluded.theme,
            language = excluded.language,
            timezone = excluded.timezone,
            updated_at = excluded.updated_at`,
		append(args, time.Now().UTC(), s.userID)...)
	return classify(err)
}

func settingsArgs(p models.SettingsPatch) ([]any, error) {
	notifications, err := encodeJSONColumn(p.Notifications)
	if err != nil {
		return nil, err
	}
	privacy, err := encodeJSONColumn(p.Privacy)
	if err != nil {
		return nil, err
	}
	security, err := encodeJSONColumn(p.Security)
	if err != nil {
		return nil, err
	}
	return []any{notifications, privacy, security, p.Currency, p.Theme, p.Language, p.Timezone}, nil
}

func encodeJSONColumn[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeJSONColumn[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
