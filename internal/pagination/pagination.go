// Package pagination parses page/limit/sort query parameters and builds the
// list response envelope shared by every collection endpoint.
package pagination

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"staybook/internal/errs"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sort is a validated ORDER BY clause. Column is always a value from the
// resource's whitelist, never raw client input.
type Sort struct {
	Column string
	Desc   bool
}

// Direction renders the SQL direction keyword.
func (s Sort) Direction() string {
	if s.Desc {
		return "DESC"
	}
	return "ASC"
}

// SortSpec describes which client-facing columns a resource can be sorted on.
// Columns maps the public name to the SQL column expression.
type SortSpec struct {
	Default Sort
	Columns map[string]string
}

type Params struct {
	Page  int
	Limit int
	Sort  Sort
}

// From is the zero-based offset of the first row on the page.
func (p Params) From() int {
	return (p.Page - 1) * p.Limit
}

// To is the zero-based offset of the last row on the page, inclusive.
func (p Params) To() int {
	return p.From() + p.Limit - 1
}

// Parse reads page, limit and sort from q. Missing values take defaults;
// non-numeric or non-positive page/limit, pages whose offset overflows and
// unknown sort columns are rejected with 400. A limit above MaxLimit is clamped.
func Parse(q url.Values, spec SortSpec) (Params, error) {
	p := Params{Page: DefaultPage, Limit: DefaultLimit, Sort: spec.Default}

	var err error
	if p.Page, err = positiveInt(q.Get("page"), DefaultPage); err != nil {
		return Params{}, errs.BadRequest("invalid page").WithDetails(err.Error())
	}
	if p.Limit, err = positiveInt(q.Get("limit"), DefaultLimit); err != nil {
		return Params{}, errs.BadRequest("invalid limit").WithDetails(err.Error())
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	// The last row offset of the page must fit in an int.
	if p.Page-1 > (math.MaxInt-p.Limit)/p.Limit {
		return Params{}, errs.BadRequest("invalid page").WithDetails(fmt.Sprintf("page %d is out of range", p.Page))
	}

	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		sort, err := parseSort(raw, spec)
		if err != nil {
			return Params{}, errs.BadRequest("invalid sort").WithDetails(err.Error())
		}
		p.Sort = sort
	}

	return p, nil
}

func positiveInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}

func parseSort(raw string, spec SortSpec) (Sort, error) {
	name, dir, _ := strings.Cut(raw, ":")
	column, ok := spec.Columns[strings.TrimSpace(name)]
	if !ok {
		return Sort{}, fmt.Errorf("cannot sort by %q", name)
	}
	return Sort{Column: column, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}, nil
}

type Meta struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasMore     bool `json:"hasMore"`
}

// NewMeta computes totalPages = ceil(total/limit) and hasMore = page < totalPages.
func NewMeta(total int, p Params) Meta {
	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	totalPages := (total + limit - 1) / limit
	return Meta{
		Total:       total,
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		HasMore:     p.Page < totalPages,
	}
}

type Envelope[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

// Wrap builds the list response. A nil slice is rendered as [].
func Wrap[T any](data []T, total int, p Params) Envelope[T] {
	if data == nil {
		data = []T{}
	}
	return Envelope[T]{Data: data, Pagination: NewMeta(total, p)}
}
