package service

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/models"
	"staybook/internal/settings"
)

// ProfileScope is the part of a user scope needed to edit one's own profile.
type ProfileScope interface {
	UserID() int64
	domain.ProfileStore
}

type UserService struct {
	users  domain.UserDirectory
	scopes domain.ScopeFactory
	images domain.ImageStorage
	logger zerolog.Logger
}

func NewUserService(users domain.UserDirectory, scopes domain.ScopeFactory, images domain.ImageStorage, logger *zerolog.Logger) *UserService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "users").Logger()
	}
	return &UserService{users: users, scopes: scopes, images: images, logger: l}
}

// Get returns a profile as seen by viewerID. The owner sees everything;
// others see what the owner's privacy settings allow.
func (s *UserService) Get(ctx context.Context, viewerID, id int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	if user.Stats, err = s.users.GetUserStats(ctx, id); err != nil {
		return nil, storeError(err, "user not found")
	}
	if viewerID == id {
		return user, nil
	}

	privacy, err := s.privacyOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if privacy.ProfileVisibility == "private" {
		return &models.User{ID: user.ID, Name: user.Name, AvatarURL: user.AvatarURL}, nil
	}
	if !privacy.ShowEmail {
		user.Email = ""
	}
	if !privacy.ShowPhone {
		user.Phone = ""
	}
	return user, nil
}

// privacyOf reads another user's stored privacy preferences without writing
// defaults on their behalf.
func (s *UserService) privacyOf(ctx context.Context, id int64) (models.PrivacySettings, error) {
	prefs := settings.Defaults()
	stored, err := s.scopes(id).GetSettings(ctx)
	switch {
	case err == nil:
		prefs = settings.Reconcile(prefs, stored)
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrTableMissing):
	default:
		return models.PrivacySettings{}, errs.Internal("failed to load privacy settings", err)
	}
	return prefs.Privacy, nil
}

// Update edits the caller's own profile.
func (s *UserService) Update(ctx context.Context, scope ProfileScope, id int64, upd models.ProfileUpdate) (*models.User, error) {
	if scope.UserID() != id {
		return nil, errs.Forbidden("you can only update your own profile")
	}
	if err := scope.UpdateProfile(ctx, upd); err != nil {
		return nil, storeError(err, "user not found")
	}
	return s.profile(ctx, scope)
}

// SetProfileImage stores an uploaded avatar and points the caller's profile at it.
func (s *UserService) SetProfileImage(ctx context.Context, scope ProfileScope, id int64, filename string, r io.Reader) (*models.User, error) {
	if scope.UserID() != id {
		return nil, errs.Forbidden("you can only update your own profile image")
	}
	url, err := s.images.SaveImage(ctx, "avatars", filename, r)
	if err != nil {
		return nil, uploadError(err)
	}
	if err := scope.SetAvatar(ctx, url); err != nil {
		return nil, storeError(err, "user not found")
	}
	s.logger.Info().Int64("user_id", id).Str("url", url).Msg("profile image updated")
	return s.profile(ctx, scope)
}

func (s *UserService) profile(ctx context.Context, scope ProfileScope) (*models.User, error) {
	user, err := scope.Profile(ctx)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	return user, nil
}
