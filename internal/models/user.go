package models

import "time"

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email,omitempty"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Stats        *UserStats `json:"stats,omitempty"`
}

// UserStats holds the per-user counters maintained alongside bookings and favorites.
type UserStats struct {
	UserID         int64 `json:"-"`
	BookingsCount  int   `json:"bookings_count"`
	FavoritesCount int   `json:"favorites_count"`
	ReviewsCount   int   `json:"reviews_count"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Bio   *string `json:"bio" validate:"omitempty,max=2000"`
}
