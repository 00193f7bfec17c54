package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/domain"
)

const recoveryInterval = time.Minute

// FailoverTokenStore prefers the primary store and switches to the fallback
// on the first primary error. The primary is retried once a minute.
type FailoverTokenStore struct {
	primary  domain.TokenStore
	fallback domain.TokenStore
	logger   zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverTokenStore(primary, fallback domain.TokenStore, logger *zerolog.Logger) *FailoverTokenStore {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "token_store").Logger()
	}
	return &FailoverTokenStore{primary: primary, fallback: fallback, logger: l}
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverTokenStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverTokenStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary token store failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverTokenStore) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary token store recovered")
	}
}

func (r *FailoverTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	// Revocations always land in the fallback too so they survive a later outage.
	if err := r.fallback.Revoke(ctx, tokenID, ttl); err != nil {
		return err
	}
	if r.usePrimary() {
		if err := r.primary.Revoke(ctx, tokenID, ttl); err != nil {
			r.markDown(err)
			return nil
		}
		r.markUp()
	}
	return nil
}

func (r *FailoverTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.usePrimary() {
		revoked, err := r.primary.IsRevoked(ctx, tokenID)
		if err == nil {
			r.markUp()
			if revoked {
				return true, nil
			}
			return r.fallback.IsRevoked(ctx, tokenID)
		}
		r.markDown(err)
	}
	return r.fallback.IsRevoked(ctx, tokenID)
}

func (r *FailoverTokenStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
