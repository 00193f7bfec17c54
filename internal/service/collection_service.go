package service

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/models"
	"staybook/internal/pagination"
)

type CollectionRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	RoomIDs     []int64 `json:"room_ids" validate:"omitempty,dive,gt=0"`
}

type CollectionService struct{}

func NewCollectionService() *CollectionService {
	return &CollectionService{}
}

func (s *CollectionService) Create(ctx context.Context, store domain.CollectionStore, req CollectionRequest) (*models.Collection, error) {
	c := &models.Collection{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := store.CreateCollection(ctx, c, req.RoomIDs); err != nil {
		return nil, collectionError(err)
	}
	return s.Get(ctx, store, c.ID)
}

func (s *CollectionService) Get(ctx context.Context, store domain.CollectionStore, id int64) (*models.Collection, error) {
	c, err := store.GetCollection(ctx, id)
	if err != nil {
		return nil, collectionError(err)
	}
	return c, nil
}

func (s *CollectionService) List(ctx context.Context, store domain.CollectionStore, p pagination.Params) (pagination.Envelope[models.Collection], error) {
	cs, total, err := store.ListCollections(ctx, p)
	if err != nil {
		return pagination.Envelope[models.Collection]{}, collectionError(err)
	}
	return pagination.Wrap(cs, total, p), nil
}

// Update changes the provided fields; a non-nil room list replaces the rooms.
func (s *CollectionService) Update(ctx context.Context, store domain.CollectionStore, id int64, upd models.CollectionUpdate) (*models.Collection, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, errs.BadRequest("name cannot be empty")
		}
		upd.Name = &name
	}
	if err := store.UpdateCollection(ctx, id, upd); err != nil {
		return nil, collectionError(err)
	}
	return s.Get(ctx, store, id)
}

func (s *CollectionService) Delete(ctx context.Context, store domain.CollectionStore, id int64) error {
	return collectionError(store.DeleteCollection(ctx, id))
}

func collectionError(err error) error {
	if errors.Is(err, database.ErrConstraint) {
		return errs.BadRequest("room_ids contains an unknown room")
	}
	return storeError(err, "collection not found")
}
