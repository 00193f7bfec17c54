package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/errs"
	"staybook/internal/events"
	"staybook/internal/models"
	"staybook/internal/pagination"
	"staybook/internal/storage"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type fakeImages struct {
	err   error
	saved []string
}

func (f *fakeImages) SaveImage(_ context.Context, category, filename string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	url := "/uploads/" + category + "/" + filename
	f.saved = append(f.saved, url)
	return url, nil
}

type fixture struct {
	db    *database.DB
	host  *models.User
	guest *models.User
	room  *models.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	host := &models.User{Email: "host@example.com", Name: "Host", Phone: "+100", PasswordHash: "x"}
	guest := &models.User{Email: "guest@example.com", Name: "Guest", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(ctx, host))
	require.NoError(t, db.CreateUser(ctx, guest))

	room := &models.Room{HostID: host.ID, Title: "Loft", Type: "apartment", Location: "Porto", Price: 100, MaxGuests: 2, Amenities: []string{"wifi"}}
	require.NoError(t, db.CreateRoom(ctx, room))
	return &fixture{db: db, host: host, guest: guest, room: room}
}

func (f *fixture) scopes() domain.ScopeFactory {
	return func(id int64) domain.UserScope { return f.db.ForUser(id) }
}

func status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return errs.As(err).Status
}

func page(p, limit int, spec pagination.SortSpec) pagination.Params {
	return pagination.Params{Page: p, Limit: limit, Sort: spec.Default}
}

func TestQuote(t *testing.T) {
	start := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	nights, price := Quote(100, start, time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, nights)
	assert.Equal(t, 200.0, price)

	nights, price = Quote(80.5, start, start.Add(25*time.Hour))
	assert.Equal(t, 2, nights)
	assert.Equal(t, 161.0, price)

	nights, _ = Quote(100, start, start)
	assert.Zero(t, nights)
	nights, _ = Quote(100, start, start.Add(-time.Hour))
	assert.Zero(t, nights)
}

func TestParseStayDate(t *testing.T) {
	d, err := ParseStayDate("2024-04-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseStayDate("2024-04-10T14:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC), d)

	_, err = ParseStayDate("10/04/2024")
	assert.Error(t, err)
}

func TestBookingService_Create(t *testing.T) {
	f := newFixture(t)
	pub := new(mockPublisher)
	svc := NewBookingService(f.db, pub, nil)
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	pub.On("PublishJSON", events.EventBookingCreated, mock.MatchedBy(func(p events.BookingEventPayload) bool {
		return p.RoomTitle == "Loft" && p.Price == 200 && p.Source == events.SourceAPI
	})).Return(nil).Once()

	b, err := svc.Create(ctx, scope, CreateBookingRequest{RoomID: f.room.ID, StartDate: "2024-04-10", EndDate: "2024-04-12"})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Nights)
	assert.Equal(t, 200.0, b.Price)
	assert.Equal(t, models.BookingStatusActive, b.Status)
	assert.Equal(t, f.guest.ID, b.UserID)
	pub.AssertExpectations(t)

	stats, err := f.db.GetUserStats(ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BookingsCount)
}

func TestBookingService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	svc := NewBookingService(f.db, nil, nil)
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	_, err := svc.Create(ctx, scope, CreateBookingRequest{RoomID: 999, StartDate: "2024-04-10", EndDate: "2024-04-12"})
	assert.Equal(t, http.StatusNotFound, status(err))

	_, err = svc.Create(ctx, scope, CreateBookingRequest{RoomID: f.room.ID, StartDate: "2024-04-12", EndDate: "2024-04-12"})
	assert.Equal(t, http.StatusBadRequest, status(err))

	_, err = svc.Create(ctx, scope, CreateBookingRequest{RoomID: f.room.ID, StartDate: "2024-04-12", EndDate: "2024-04-10"})
	assert.Equal(t, http.StatusBadRequest, status(err))

	_, err = svc.Create(ctx, scope, CreateBookingRequest{RoomID: f.room.ID, StartDate: "soon", EndDate: "2024-04-10"})
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestBookingService_CancelAndDelete(t *testing.T) {
	f := newFixture(t)
	pub := new(mockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	svc := NewBookingService(f.db, pub, nil)
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	b, err := svc.Create(ctx, scope, CreateBookingRequest{RoomID: f.room.ID, StartDate: "2024-04-10", EndDate: "2024-04-12"})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, f.db.ForUser(f.host.ID), b.ID)
	assert.Equal(t, http.StatusNotFound, status(err), "other users cannot see the booking")

	cancelled, err := svc.Cancel(ctx, scope, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, scope, b.ID)
	assert.Equal(t, http.StatusBadRequest, status(err))

	require.NoError(t, svc.Delete(ctx, scope, b.ID))
	assert.Equal(t, http.StatusNotFound, status(svc.Delete(ctx, scope, b.ID)))

	stats, err := f.db.GetUserStats(ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.BookingsCount)

	pub.AssertCalled(t, "PublishJSON", events.EventBookingCancelled, mock.Anything)
	pub.AssertCalled(t, "PublishJSON", events.EventBookingDeleted, mock.Anything)
}

func TestBookingService_List(t *testing.T) {
	f := newFixture(t)
	svc := NewBookingService(f.db, nil, nil)
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	for i := 0; i < 3; i++ {
		start := time.Date(2024, 5, 1+i*3, 0, 0, 0, 0, time.UTC)
		_, err := svc.Create(ctx, scope, CreateBookingRequest{
			RoomID: f.room.ID, StartDate: start.Format(models.DateLayout), EndDate: start.AddDate(0, 0, 1).Format(models.DateLayout),
		})
		require.NoError(t, err)
	}

	env, err := svc.List(ctx, scope, "", page(1, 2, BookingSort))
	require.NoError(t, err)
	assert.Len(t, env.Data, 2)
	assert.Equal(t, pagination.Meta{Total: 3, CurrentPage: 1, TotalPages: 2, HasMore: true}, env.Pagination)

	env, err = svc.List(ctx, scope, models.BookingStatusCancelled, page(1, 10, BookingSort))
	require.NoError(t, err)
	assert.Empty(t, env.Data)
	assert.NotNil(t, env.Data)

	_, err = svc.List(ctx, scope, "pending", page(1, 10, BookingSort))
	assert.Equal(t, http.StatusBadRequest, status(err))

	data, err := svc.Export(ctx, scope)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestFavoriteService(t *testing.T) {
	f := newFixture(t)
	svc := NewFavoriteService(f.db)
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	fav, err := svc.Add(ctx, scope, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loft", fav.Room.Title)

	_, err = svc.Add(ctx, scope, f.room.ID)
	assert.Equal(t, http.StatusBadRequest, status(err))

	_, err = svc.Add(ctx, scope, 999)
	assert.Equal(t, http.StatusNotFound, status(err))

	env, err := svc.List(ctx, scope, page(1, 10, FavoriteSort))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Pagination.Total)
	assert.False(t, env.Pagination.HasMore)

	require.NoError(t, svc.Remove(ctx, scope, f.room.ID))
	assert.Equal(t, http.StatusNotFound, status(svc.Remove(ctx, scope, f.room.ID)))
}

func TestCollectionService(t *testing.T) {
	f := newFixture(t)
	svc := NewCollectionService()
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	_, err := svc.Create(ctx, scope, CollectionRequest{Name: "Trips", RoomIDs: []int64{999}})
	assert.Equal(t, http.StatusBadRequest, status(err))

	c, err := svc.Create(ctx, scope, CollectionRequest{Name: " Summer ", RoomIDs: []int64{f.room.ID}})
	require.NoError(t, err)
	assert.Equal(t, "Summer", c.Name)
	assert.Equal(t, 1, c.RoomCount)
	require.Len(t, c.Rooms, 1)

	_, err = svc.Get(ctx, f.db.ForUser(f.host.ID), c.ID)
	assert.Equal(t, http.StatusNotFound, status(err))

	blank := "  "
	_, err = svc.Update(ctx, scope, c.ID, models.CollectionUpdate{Name: &blank})
	assert.Equal(t, http.StatusBadRequest, status(err))

	name := "Winter"
	updated, err := svc.Update(ctx, scope, c.ID, models.CollectionUpdate{Name: &name, RoomIDs: []int64{}})
	require.NoError(t, err)
	assert.Equal(t, "Winter", updated.Name)
	assert.Zero(t, updated.RoomCount)

	env, err := svc.List(ctx, scope, page(1, 10, CollectionSort))
	require.NoError(t, err)
	assert.Len(t, env.Data, 1)

	require.NoError(t, svc.Delete(ctx, scope, c.ID))
	assert.Equal(t, http.StatusNotFound, status(svc.Delete(ctx, scope, c.ID)))
}

func TestRoomService(t *testing.T) {
	f := newFixture(t)
	images := &fakeImages{}
	svc := NewRoomService(f.db, images, nil)
	ctx := context.Background()
	hostScope := f.db.ForUser(f.host.ID)
	guestScope := f.db.ForUser(f.guest.ID)

	req := RoomRequest{Title: "Cabin", Type: "house", Location: "Alps", Price: 150, MaxGuests: 4, Amenities: []string{"sauna"}}
	room, err := svc.Create(ctx, f.host.ID, req)
	require.NoError(t, err)
	assert.Equal(t, f.host.ID, room.HostID)
	assert.Equal(t, []string{"sauna"}, room.Amenities)

	req.Price = 175
	_, err = svc.Update(ctx, guestScope, room.ID, req)
	assert.Equal(t, http.StatusForbidden, status(err))

	_, err = svc.Update(ctx, hostScope, 999, req)
	assert.Equal(t, http.StatusNotFound, status(err))

	req.Amenities = nil
	updated, err := svc.Update(ctx, hostScope, room.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 175.0, updated.Price)
	assert.Equal(t, []string{"sauna"}, updated.Amenities)

	_, err = svc.AddImage(ctx, guestScope, room.ID, "a.png", strings.NewReader("x"), false)
	assert.Equal(t, http.StatusForbidden, status(err))

	img, err := svc.AddImage(ctx, hostScope, room.ID, "a.png", strings.NewReader("x"), false)
	require.NoError(t, err)
	assert.True(t, img.IsPrimary, "first image becomes primary")

	images.err = storage.ErrUnsupportedType
	_, err = svc.AddImage(ctx, hostScope, room.ID, "a.txt", strings.NewReader("x"), false)
	assert.Equal(t, http.StatusBadRequest, status(err))

	env, err := svc.List(ctx, models.RoomFilter{Location: "alp"}, page(1, 10, RoomSort))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Pagination.Total)

	_, err = svc.List(ctx, models.RoomFilter{MinPrice: 200, MaxPrice: 100}, page(1, 10, RoomSort))
	assert.Equal(t, http.StatusBadRequest, status(err))

	assert.Equal(t, http.StatusForbidden, status(svc.Delete(ctx, guestScope, room.ID)))
	require.NoError(t, svc.Delete(ctx, hostScope, room.ID))
	_, err = svc.Get(ctx, room.ID)
	assert.Equal(t, http.StatusNotFound, status(err))
}

func TestUserService_Get(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.db, f.scopes(), &fakeImages{}, nil)
	ctx := context.Background()

	self, err := svc.Get(ctx, f.host.ID, f.host.ID)
	require.NoError(t, err)
	assert.Equal(t, "host@example.com", self.Email)
	assert.NotNil(t, self.Stats)

	other, err := svc.Get(ctx, f.guest.ID, f.host.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Email)
	assert.Empty(t, other.Phone)
	assert.Equal(t, "Host", other.Name)

	show := true
	require.NoError(t, f.db.ForUser(f.host.ID).UpsertSettings(ctx, models.SettingsPatch{
		Privacy: &models.PrivacyPatch{ShowEmail: &show},
	}))
	other, err = svc.Get(ctx, f.guest.ID, f.host.ID)
	require.NoError(t, err)
	assert.Equal(t, "host@example.com", other.Email)

	private := "private"
	require.NoError(t, f.db.ForUser(f.host.ID).UpsertSettings(ctx, models.SettingsPatch{
		Privacy: &models.PrivacyPatch{ProfileVisibility: &private, ShowEmail: &show},
	}))
	other, err = svc.Get(ctx, f.guest.ID, f.host.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Email)
	assert.Nil(t, other.Stats)

	_, err = svc.Get(ctx, f.guest.ID, 999)
	assert.Equal(t, http.StatusNotFound, status(err))
}

func TestUserService_Update(t *testing.T) {
	f := newFixture(t)
	images := &fakeImages{}
	svc := NewUserService(f.db, f.scopes(), images, nil)
	ctx := context.Background()
	scope := f.db.ForUser(f.guest.ID)

	bio := "Loves sea views"
	_, err := svc.Update(ctx, scope, f.host.ID, models.ProfileUpdate{Bio: &bio})
	assert.Equal(t, http.StatusForbidden, status(err))

	user, err := svc.Update(ctx, scope, f.guest.ID, models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, user.Bio)
	assert.Equal(t, "Guest", user.Name)

	_, err = svc.SetProfileImage(ctx, scope, f.host.ID, "me.png", strings.NewReader("x"))
	assert.Equal(t, http.StatusForbidden, status(err))

	user, err = svc.SetProfileImage(ctx, scope, f.guest.ID, "me.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/me.png", user.AvatarURL)

	images.err = errors.New("disk full")
	_, err = svc.SetProfileImage(ctx, scope, f.guest.ID, "me.png", strings.NewReader("x"))
	assert.Equal(t, http.StatusInternalServerError, status(err))
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, storeError(nil, "x"))
	assert.Equal(t, http.StatusNotFound, status(storeError(database.ErrNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, status(storeError(database.ErrDuplicate, "x")))
	assert.Equal(t, http.StatusBadRequest, status(storeError(database.ErrConstraint, "x")))
	assert.Equal(t, http.StatusInternalServerError, status(storeError(errors.New("boom"), "x")))
	assert.Equal(t, http.StatusForbidden, status(storeError(errs.Forbidden("no"), "x")))
}
