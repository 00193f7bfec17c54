package models

import "time"

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RoomID    int64     `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
	Room      *Room     `json:"room,omitempty"`
}

type Collection struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RoomCount   int       `json:"room_count"`
	Rooms       []Room    `json:"rooms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CollectionUpdate carries optional changes. RoomIDs, when non-nil, replaces
// the collection's rooms.
type CollectionUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	RoomIDs     []int64 `json:"room_ids"`
}
