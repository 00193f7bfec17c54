package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/models"
)

type Service struct {
	logger zerolog.Logger
}

func NewService(logger *zerolog.Logger) *Service {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "settings").Logger()
	}
	return &Service{logger: l}
}

// Get returns the complete settings of the store's user. A missing table
// yields defaults without writing; a missing row is seeded with defaults.
func (s *Service) Get(ctx context.Context, store domain.SettingsStore) (models.UserSettings, error) {
	defaults := Defaults()

	stored, err := store.GetSettings(ctx)
	switch {
	case err == nil:
		return Reconcile(defaults, stored), nil
	case errors.Is(err, database.ErrTableMissing):
		s.logger.Warn().Err(err).Msg("settings table missing, serving defaults")
		return defaults, nil
	case !errors.Is(err, database.ErrNotFound):
		return models.UserSettings{}, fmt.Errorf("load settings: %w", err)
	}

	if err := store.UpsertSettings(ctx, defaults.Patch()); err != nil {
		return models.UserSettings{}, fmt.Errorf("seed settings: %w", err)
	}
	stored, err = store.GetSettings(ctx)
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("reload settings: %w", err)
	}
	return Reconcile(defaults, stored), nil
}

// Update applies partial over the current record and persists the result.
// When no row is updated the row is created from defaults plus partial.
func (s *Service) Update(ctx context.Context, store domain.SettingsStore, partial models.SettingsPatch) (models.UserSettings, error) {
	defaults := Defaults()

	stored, err := store.GetSettings(ctx)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return models.UserSettings{}, fmt.Errorf("load settings: %w", err)
	}

	merged := Reconcile(Reconcile(defaults, stored), &partial)
	n, err := store.UpdateSettings(ctx, merged.Patch())
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("update settings: %w", err)
	}
	if n == 0 {
		merged = Reconcile(defaults, &partial)
		if err := store.UpsertSettings(ctx, merged.Patch()); err != nil {
			return models.UserSettings{}, fmt.Errorf("upsert settings: %w", err)
		}
	}
	return merged, nil
}
