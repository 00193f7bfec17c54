package models

import "time"

type Room struct {
	ID          int64       `json:"id" yaml:"-"`
	HostID      int64       `json:"host_id" yaml:"host_id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Type        string      `json:"type" yaml:"type"`
	Location    string      `json:"location" yaml:"location"`
	Price       float64     `json:"price" yaml:"price"`
	MaxGuests   int         `json:"max_guests" yaml:"max_guests"`
	Amenities   []string    `json:"amenities" yaml:"amenities"`
	Images      []RoomImage `json:"images" yaml:"images"`
	Host        *User       `json:"host,omitempty" yaml:"-"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

type RoomImage struct {
	ID        int64     `json:"id" yaml:"-"`
	RoomID    int64     `json:"room_id" yaml:"-"`
	URL       string    `json:"url" yaml:"url"`
	IsPrimary bool      `json:"is_primary" yaml:"is_primary"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// PrimaryImage returns the image flagged primary, falling back to the first one.
func (r *Room) PrimaryImage() *RoomImage {
	for i := range r.Images {
		if r.Images[i].IsPrimary {
			return &r.Images[i]
		}
	}
	if len(r.Images) > 0 {
		return &r.Images[0]
	}
	return nil
}

// RoomFilter narrows room listings and searches. Zero values mean "no filter".
type RoomFilter struct {
	Query     string
	Type      string
	Location  string
	MinPrice  float64
	MaxPrice  float64
	Amenities []string
	HostID    int64
}
