// Package service holds the resource operations behind the HTTP handlers.
// Owner-restricted operations take the caller's user-bound store so every
// read and write is limited to that user's rows.
package service

import (
	"errors"

	"staybook/internal/database"
	"staybook/internal/errs"
	"staybook/internal/pagination"
)

var (
	RoomSort = pagination.SortSpec{
		Default: pagination.Sort{Column: "r.created_at", Desc: true},
		Columns: roomColumns,
	}
	RoomSearchSort = pagination.SortSpec{
		Default: pagination.Sort{Column: "r.price"},
		Columns: roomColumns,
	}
	BookingSort = pagination.SortSpec{
		Default: pagination.Sort{Column: "b.created_at", Desc: true},
		Columns: map[string]string{
			"created_at": "b.created_at",
			"start_date": "b.start_date",
			"end_date":   "b.end_date",
			"price":      "b.price",
			"status":     "b.status",
		},
	}
	FavoriteSort = pagination.SortSpec{
		Default: pagination.Sort{Column: "f.created_at", Desc: true},
		Columns: map[string]string{"created_at": "f.created_at"},
	}
	CollectionSort = pagination.SortSpec{
		Default: pagination.Sort{Column: "c.created_at", Desc: true},
		Columns: map[string]string{
			"created_at": "c.created_at",
			"updated_at": "c.updated_at",
			"name":       "c.name",
		},
	}
)

var roomColumns = map[string]string{
	"created_at": "r.created_at",
	"price":      "r.price",
	"title":      "r.title",
	"max_guests": "r.max_guests",
}

// storeError maps storage sentinels onto HTTP errors. notFound is the
// message used for ErrNotFound.
func storeError(err error, notFound string) error {
	var httpErr *errs.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &httpErr):
		return err
	case errors.Is(err, database.ErrNotFound):
		return errs.NotFound(notFound)
	case errors.Is(err, database.ErrDuplicate):
		return errs.BadRequest("record already exists")
	case errors.Is(err, database.ErrConstraint):
		return errs.BadRequest("referenced record does not exist")
	default:
		return errs.Internal("storage failure", err)
	}
}
