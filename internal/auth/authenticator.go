package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
)

// Authenticator resolves bearer tokens to principals and binds a data scope
// to each authenticated request.
type Authenticator struct {
	issuer *Issuer
	tokens domain.TokenStore
	users  domain.UserDirectory
	scopes domain.ScopeFactory
	logger zerolog.Logger
}

func NewAuthenticator(issuer *Issuer, tokens domain.TokenStore, users domain.UserDirectory,
	scopes domain.ScopeFactory, logger *zerolog.Logger,
) *Authenticator {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "auth").Logger()
	}
	return &Authenticator{issuer: issuer, tokens: tokens, users: users, scopes: scopes, logger: l}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errs.Unauthorized("no token provided")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errs.Unauthorized("invalid authorization header")
	}
	return parts[1], nil
}

// Authenticate verifies token and returns the principal it belongs to.
// Rejections are 401; store failures are 500.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := a.issuer.Parse(token)
	if err != nil {
		return nil, errs.Unauthorized("invalid token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, errs.Unauthorized("invalid token")
	}

	revoked, err := a.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errs.Internal("failed to verify token", err)
	}
	if revoked {
		return nil, errs.Unauthorized("token has been revoked")
	}

	user, err := a.users.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errs.Unauthorized("user not found")
	}
	if err != nil {
		return nil, errs.Internal("failed to resolve user", err)
	}

	p := &Principal{ID: user.ID, Email: user.Email, Name: user.Name, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// Middleware rejects unauthenticated requests through fail and otherwise
// stores the principal and a freshly bound UserScope in the request context.
func (a *Authenticator) Middleware(fail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				fail(w, r, err)
				return
			}
			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if errs.As(err).Status >= http.StatusInternalServerError {
					a.logger.Error().Err(err).Msg("authentication backend failure")
				}
				fail(w, r, err)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = WithScope(ctx, a.scopes(p.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
