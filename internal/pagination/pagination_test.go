package pagination

import (
	"math"
	"net/http"
	"net/url"
	"testing"

	"staybook/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roomSort = SortSpec{
	Default: Sort{Column: "r.created_at", Desc: true},
	Columns: map[string]string{"created_at": "r.created_at", "price": "r.price"},
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse(url.Values{}, roomSort)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, roomSort.Default, p.Sort)
	assert.Equal(t, 0, p.From())
	assert.Equal(t, 9, p.To())
}

func TestParseValues(t *testing.T) {
	p, err := Parse(url.Values{"page": {"3"}, "limit": {"20"}, "sort": {"price:desc"}}, roomSort)
	require.NoError(t, err)
	assert.Equal(t, 40, p.From())
	assert.Equal(t, 59, p.To())
	assert.Equal(t, Sort{Column: "r.price", Desc: true}, p.Sort)
	assert.Equal(t, "DESC", p.Sort.Direction())
}

func TestParseSortDirectionDefaultsAscending(t *testing.T) {
	for _, raw := range []string{"price", "price:asc", "price:ASC", "price:sideways"} {
		p, err := Parse(url.Values{"sort": {raw}}, roomSort)
		require.NoError(t, err, raw)
		assert.False(t, p.Sort.Desc, raw)
	}
}

func TestParseClampsLimit(t *testing.T) {
	p, err := Parse(url.Values{"limit": {"1000"}}, roomSort)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, p.Limit)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []url.Values{
		{"page": {"0"}},
		{"page": {"-2"}},
		{"page": {"abc"}},
		{"limit": {"0"}},
		{"limit": {"1.5"}},
		{"page": {"9223372036854775807"}, "limit": {"100"}},
		{"page": {"9223372036854775807"}},
		{"page": {"99999999999999999999"}},
		{"sort": {"password_hash:asc"}},
	}
	for _, q := range cases {
		_, err := Parse(q, roomSort)
		require.Error(t, err, q.Encode())
		assert.Equal(t, http.StatusBadRequest, errs.As(err).Status, q.Encode())
	}
}

func TestParseLargePageKeepsOffset(t *testing.T) {
	p, err := Parse(url.Values{"page": {"1000000"}, "limit": {"100"}}, roomSort)
	require.NoError(t, err)
	assert.Equal(t, 99999900, p.From())
	assert.Equal(t, 99999999, p.To())
}

func TestNewMeta(t *testing.T) {
	for total := 0; total <= 35; total++ {
		for limit := 1; limit <= 12; limit++ {
			for page := 1; page <= 6; page++ {
				m := NewMeta(total, Params{Page: page, Limit: limit})
				want := int(math.Ceil(float64(total) / float64(limit)))
				assert.Equal(t, want, m.TotalPages)
				assert.Equal(t, page < want, m.HasMore)
				assert.Equal(t, page, m.CurrentPage)
				assert.Equal(t, total, m.Total)
			}
		}
	}
}

func TestWrapNilData(t *testing.T) {
	env := Wrap[int](nil, 0, Params{Page: 1, Limit: 10})
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Data)
	assert.False(t, env.Pagination.HasMore)
}
