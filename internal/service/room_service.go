package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/models"
	"staybook/internal/pagination"
	"staybook/internal/storage"
)

type RoomRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Type        string   `json:"type" validate:"required,max=50"`
	Location    string   `json:"location" validate:"required,max=200"`
	Price       float64  `json:"price" validate:"gt=0"`
	MaxGuests   int      `json:"max_guests" validate:"min=1,max=100"`
	Amenities   []string `json:"amenities" validate:"omitempty,dive,min=1,max=60"`
}

// HostScope is the part of a user scope needed to manage hosted rooms.
type HostScope interface {
	UserID() int64
	domain.HostStore
}

type RoomService struct {
	rooms  domain.RoomCatalog
	images domain.ImageStorage
	logger zerolog.Logger
}

func NewRoomService(rooms domain.RoomCatalog, images domain.ImageStorage, logger *zerolog.Logger) *RoomService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "rooms").Logger()
	}
	return &RoomService{rooms: rooms, images: images, logger: l}
}

func (s *RoomService) List(ctx context.Context, filter models.RoomFilter, p pagination.Params) (pagination.Envelope[models.Room], error) {
	if filter.MinPrice > 0 && filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return pagination.Envelope[models.Room]{}, errs.BadRequest("min_price exceeds max_price")
	}
	rooms, total, err := s.rooms.ListRooms(ctx, filter, p)
	if err != nil {
		return pagination.Envelope[models.Room]{}, storeError(err, "room not found")
	}
	return pagination.Wrap(rooms, total, p), nil
}

func (s *RoomService) Get(ctx context.Context, id int64) (*models.Room, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return nil, storeError(err, "room not found")
	}
	return room, nil
}

// Create lists a new room hosted by hostID.
func (s *RoomService) Create(ctx context.Context, hostID int64, req RoomRequest) (*models.Room, error) {
	room := &models.Room{
		HostID:      hostID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        req.Type,
		Location:    req.Location,
		Price:       req.Price,
		MaxGuests:   req.MaxGuests,
		Amenities:   req.Amenities,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, storeError(err, "host not found")
	}
	s.logger.Info().Int64("room_id", room.ID).Int64("host_id", hostID).Msg("room created")
	return s.Get(ctx, room.ID)
}

// Update replaces the room's details. Only the host may change a room;
// amenities are left as they are when the request omits them.
func (s *RoomService) Update(ctx context.Context, scope HostScope, id int64, req RoomRequest) (*models.Room, error) {
	if _, err := s.hostedRoom(ctx, scope, id); err != nil {
		return nil, err
	}
	room := &models.Room{
		ID:          id,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        req.Type,
		Location:    req.Location,
		Price:       req.Price,
		MaxGuests:   req.MaxGuests,
		Amenities:   req.Amenities,
	}
	if err := scope.UpdateRoom(ctx, room); err != nil {
		return nil, storeError(err, "room not found")
	}
	return s.Get(ctx, id)
}

func (s *RoomService) Delete(ctx context.Context, scope HostScope, id int64) error {
	if _, err := s.hostedRoom(ctx, scope, id); err != nil {
		return err
	}
	err := scope.DeleteRoom(ctx, id)
	if errors.Is(err, database.ErrConstraint) {
		return errs.BadRequest("room has bookings and cannot be deleted")
	}
	if err != nil {
		return storeError(err, "room not found")
	}
	s.logger.Info().Int64("room_id", id).Int64("host_id", scope.UserID()).Msg("room deleted")
	return nil
}

// AddImage stores an uploaded image and attaches it to a hosted room.
func (s *RoomService) AddImage(ctx context.Context, scope HostScope, roomID int64, filename string, r io.Reader, primary bool) (*models.RoomImage, error) {
	if _, err := s.hostedRoom(ctx, scope, roomID); err != nil {
		return nil, err
	}
	url, err := s.images.SaveImage(ctx, "rooms", filename, r)
	if err != nil {
		return nil, uploadError(err)
	}
	img := &models.RoomImage{RoomID: roomID, URL: url, IsPrimary: primary}
	if err := scope.AddRoomImage(ctx, img); err != nil {
		return nil, storeError(err, "room not found")
	}
	return img, nil
}

// hostedRoom loads the room and rejects callers who do not host it.
func (s *RoomService) hostedRoom(ctx context.Context, scope HostScope, id int64) (*models.Room, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.HostID != scope.UserID() {
		return nil, errs.Forbidden("only the host can modify this room")
	}
	return room, nil
}

func uploadError(err error) error {
	if errors.Is(err, storage.ErrUnsupportedType) {
		return errs.BadRequest("unsupported image type").WithDetails(err.Error())
	}
	return errs.Internal("failed to store image", err)
}
