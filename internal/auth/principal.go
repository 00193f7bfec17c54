package auth

import (
	"context"
	"time"

	"staybook/internal/domain"
)

// Principal is the authenticated caller.
type Principal struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

type principalKey struct{}

type scopeKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// WithScope attaches the request's user-bound data handle.
func WithScope(ctx context.Context, s domain.UserScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func ScopeFromContext(ctx context.Context) (domain.UserScope, bool) {
	s, ok := ctx.Value(scopeKey{}).(domain.UserScope)
	return s, ok && s != nil
}
