package service

import (
	"context"
	"errors"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/models"
	"staybook/internal/pagination"
)

type FavoriteRequest struct {
	RoomID int64 `json:"room_id" validate:"required,gt=0"`
}

type FavoriteService struct {
	rooms domain.RoomCatalog
}

func NewFavoriteService(rooms domain.RoomCatalog) *FavoriteService {
	return &FavoriteService{rooms: rooms}
}

// Add saves a room to the user's favorites. Saving the same room twice is a 400.
func (s *FavoriteService) Add(ctx context.Context, store domain.FavoriteStore, roomID int64) (*models.Favorite, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeError(err, "room not found")
	}

	fav, err := store.AddFavorite(ctx, roomID)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		return nil, errs.BadRequest("room is already in favorites")
	case errors.Is(err, database.ErrConstraint):
		return nil, errs.NotFound("room not found")
	case err != nil:
		return nil, storeError(err, "room not found")
	}
	fav.Room = room
	return fav, nil
}

func (s *FavoriteService) Remove(ctx context.Context, store domain.FavoriteStore, roomID int64) error {
	return storeError(store.RemoveFavorite(ctx, roomID), "favorite not found")
}

func (s *FavoriteService) List(ctx context.Context, store domain.FavoriteStore, p pagination.Params) (pagination.Envelope[models.Favorite], error) {
	favs, total, err := store.ListFavorites(ctx, p)
	if err != nil {
		return pagination.Envelope[models.Favorite]{}, storeError(err, "favorite not found")
	}
	return pagination.Wrap(favs, total, p), nil
}
