package database

import (
	"context"
	"errors"
	"fmt"

	"staybook/internal/models"
)

// Catalogue is the YAML document used to populate an empty room catalogue.
type Catalogue struct {
	Host struct {
		Email string `yaml:"email"`
		Name  string `yaml:"name"`
	} `yaml:"host"`
	Rooms []models.Room `yaml:"rooms"`
}

// SeedRooms inserts the catalogue rooms when no rooms exist yet. The host
// account is created with passwordHash unless one with that email exists.
// It returns the number of rooms inserted.
func (db *DB) SeedRooms(ctx context.Context, c Catalogue, passwordHash string) (int, error) {
	n, err := db.CountRooms(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 || len(c.Rooms) == 0 {
		return 0, nil
	}
	if c.Host.Email == "" {
		return 0, errors.New("seed catalogue has no host email")
	}

	host, err := db.GetUserByEmail(ctx, c.Host.Email)
	if errors.Is(err, ErrNotFound) {
		host = &models.User{Email: c.Host.Email, Name: c.Host.Name, PasswordHash: passwordHash}
		if host.Name == "" {
			host.Name = c.Host.Email
		}
		err = db.CreateUser(ctx, host)
	}
	if err != nil {
		return 0, fmt.Errorf("seed host: %w", err)
	}

	for i := range c.Rooms {
		room := c.Rooms[i]
		room.HostID = host.ID
		if err := db.CreateRoom(ctx, &room); err != nil {
			return i, fmt.Errorf("seed room %q: %w", room.Title, err)
		}
	}
	db.logger.Info().Int("rooms", len(c.Rooms)).Str("host", host.Email).Msg("room catalogue seeded")
	return len(c.Rooms), nil
}
