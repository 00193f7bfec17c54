package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/models"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned by register and login.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Service is the identity backend: account creation, credential checks and
// token revocation.
type Service struct {
	users         domain.UserDirectory
	tokens        domain.TokenStore
	issuer        *Issuer
	loginAttempts int
	loginWindow   time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(users domain.UserDirectory, tokens domain.TokenStore, issuer *Issuer,
	loginAttempts int, loginWindow time.Duration, logger *zerolog.Logger,
) *Service {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "auth").Logger()
	}
	return &Service{
		users:         users,
		tokens:        tokens,
		issuer:        issuer,
		loginAttempts: loginAttempts,
		loginWindow:   loginWindow,
		logger:        l,
		now:           time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, errs.Internal("failed to hash password", err)
	}

	user := &models.User{
		Email:        normalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, errs.BadRequest("email already registered")
		}
		return nil, errs.Internal("failed to create user", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := normalizeEmail(req.Email)

	if s.loginAttempts > 0 {
		allowed, err := s.tokens.CheckRateLimit(ctx, "login:"+email, s.loginAttempts, s.loginWindow)
		if err != nil {
			return nil, errs.Internal("failed to check login rate", err)
		}
		if !allowed {
			s.logger.Warn().Str("email", email).Msg("login throttled")
			return nil, errs.TooManyRequests("too many login attempts")
		}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errs.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, errs.Internal("failed to load user", err)
	}

	ok, err := CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, errs.Internal("failed to verify password", err)
	}
	if !ok {
		return nil, errs.Unauthorized("invalid email or password")
	}

	if user.Stats, err = s.users.GetUserStats(ctx, user.ID); err != nil {
		return nil, errs.Internal("failed to load user stats", err)
	}
	return s.session(user)
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	ttl := p.ExpiresAt.Sub(s.now())
	if err := s.tokens.Revoke(ctx, p.TokenID, ttl); err != nil {
		return errs.Internal("failed to revoke token", err)
	}
	s.logger.Info().Int64("user_id", p.ID).Msg("user logged out")
	return nil
}

// Me returns the principal's account with stats.
func (s *Service) Me(ctx context.Context, p *Principal) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, p.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errs.NotFound("user not found")
	}
	if err != nil {
		return nil, errs.Internal("failed to load user", err)
	}
	if user.Stats, err = s.users.GetUserStats(ctx, user.ID); err != nil {
		return nil, errs.Internal("failed to load user stats", err)
	}
	return user, nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, _, err := s.issuer.Issue(user)
	if err != nil {
		return nil, errs.Internal("failed to issue token", fmt.Errorf("issue token: %w", err))
	}
	return &Session{User: user, Token: token}, nil
}
