package domain

import (
	"context"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"staybook/internal/models"
	"staybook/internal/pagination"
)

// UserDirectory is the system-level view of accounts.
type UserDirectory interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error)
}

// RoomCatalog is the public room listing.
type RoomCatalog interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context, filter models.RoomFilter, p pagination.Params) ([]models.Room, int, error)
}

type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingBySession(ctx context.Context, sessionID string) (*models.Booking, error)
	ListBookings(ctx context.Context, status string, p pagination.Params) ([]models.Booking, int, error)
	AllBookings(ctx context.Context) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	DeleteBooking(ctx context.Context, id int64) error
}

type FavoriteStore interface {
	AddFavorite(ctx context.Context, roomID int64) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, roomID int64) error
	ListFavorites(ctx context.Context, p pagination.Params) ([]models.Favorite, int, error)
}

type CollectionStore interface {
	CreateCollection(ctx context.Context, c *models.Collection, roomIDs []int64) error
	GetCollection(ctx context.Context, id int64) (*models.Collection, error)
	ListCollections(ctx context.Context, p pagination.Params) ([]models.Collection, int, error)
	UpdateCollection(ctx context.Context, id int64, upd models.CollectionUpdate) error
	DeleteCollection(ctx context.Context, id int64) error
}

type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.SettingsPatch, error)
	UpdateSettings(ctx context.Context, p models.SettingsPatch) (int64, error)
	UpsertSettings(ctx context.Context, p models.SettingsPatch) error
}

type ProfileStore interface {
	Profile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error
	SetAvatar(ctx context.Context, url string) error
}

// HostStore changes rooms owned by the bound user.
type HostStore interface {
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, roomID int64) error
	AddRoomImage(ctx context.Context, img *models.RoomImage) error
}

// UserScope is a data handle bound to one authenticated user. Every
// owner-restricted read or write made through it is limited to that user.
type UserScope interface {
	UserID() int64
	BookingStore
	FavoriteStore
	CollectionStore
	SettingsStore
	ProfileStore
	HostStore
}

// ScopeFactory binds a fresh UserScope to an authenticated user id.
type ScopeFactory func(userID int64) UserScope

// PaymentStore is what the webhook needs to turn a paid session into a booking.
type PaymentStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	CreatePaidBooking(ctx context.Context, b *models.Booking) (bool, error)
}

// TokenStore keeps short-lived auth state: revoked token ids and throttles.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SheetsWriter mirrors bookings into the operator spreadsheet.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
	DeleteBookingRow(ctx context.Context, bookingID int64) error
}

type SyncWorker interface {
	EnqueueBooking(ctx context.Context, taskType string, booking *models.Booking) error
}

// ImageStorage persists uploaded images and returns their public URL.
type ImageStorage interface {
	SaveImage(ctx context.Context, category, filename string, r io.Reader) (string, error)
}
