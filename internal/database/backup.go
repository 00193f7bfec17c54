package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/config"
)

const backupPrefix = "staybook_"

// Backuper snapshots the live database on an interval and prunes old copies.
type Backuper struct {
	db     *DB
	cfg    config.BackupConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewBackuper(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *Backuper {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "backup").Logger()
	}
	return &Backuper{db: db, cfg: cfg, logger: l, now: time.Now}
}

// Run blocks until ctx is done. A disabled backuper returns immediately.
func (b *Backuper) Run(ctx context.Context) {
	if !b.cfg.Enabled {
		b.logger.Info().Msg("backups disabled")
		return
	}

	interval := b.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	b.logger.Info().Dur("interval", interval).Str("dir", b.cfg.StoragePath).Msg("backups started")

	if _, err := b.Snapshot(ctx); err != nil {
		b.logger.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Snapshot(ctx); err != nil {
				b.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			if removed := b.Prune(); removed > 0 {
				b.logger.Info().Int("removed", removed).Msg("old backups pruned")
			}
		}
	}
}

// Snapshot writes a consistent copy through VACUUM INTO on the open handle
// and returns the file path.
func (b *Backuper) Snapshot(ctx context.Context) (string, error) {
	if b.db.Path() == ":memory:" {
		return "", fmt.Errorf("cannot back up an in-memory database")
	}
	if err := os.MkdirAll(b.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	target := filepath.Join(b.cfg.StoragePath, backupPrefix+b.now().UTC().Format("20060102_150405")+".db")
	if _, err := b.db.ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", target, err)
	}

	b.logger.Info().Str("path", target).Msg("backup written")
	return target, nil
}

// Prune removes backups older than the retention window and reports how many.
func (b *Backuper) Prune() int {
	if b.cfg.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(b.cfg.StoragePath)
	if err != nil {
		b.logger.Error().Err(err).Msg("read backup directory")
		return 0
	}

	cutoff := b.now().AddDate(0, 0, -b.cfg.RetentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(b.cfg.StoragePath, e.Name())); err != nil {
			b.logger.Warn().Err(err).Str("file", e.Name()).Msg("remove old backup")
			continue
		}
		removed++
	}
	return removed
}
