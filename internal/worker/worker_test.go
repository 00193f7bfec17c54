package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"staybook/internal/database"
	"staybook/internal/events"
	"staybook/internal/models"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	booking := createBooking(t, db)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueBooking(ctx, TaskUpsert, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
	if sheets.lastUpsert == nil || sheets.lastUpsert.Room == nil || sheets.lastUpsert.Room.Title != "Loft" {
		t.Fatalf("expected upsert with loaded room, got %+v", sheets.lastUpsert)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	booking := createBooking(t, db)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueBooking(ctx, TaskUpsert, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	booking := createBooking(t, db)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueBooking(ctx, TaskUpsert, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskUpsert, BookingID: 1, Payload: "not json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestHandleSheetTask(t *testing.T) {
	db := newTestDB(t)
	booking := createBooking(t, db)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: booking.ID}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpsertVanishedBookingDeletesRow", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: 9999}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.deleteCalls != 1 {
			t.Fatalf("expected 1 delete call, got %d", sheets.deleteCalls)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskDelete, sheetTaskPayload{BookingID: 123}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.deleteCalls != 2 {
			t.Fatalf("expected 2 delete calls, got %d", sheets.deleteCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{BookingID: 123, Status: models.BookingStatusCancelled}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{BookingID: 123}); err == nil {
			t.Fatalf("expected error for missing status")
		}
		if err := worker.handleSheetTask(ctx, "bogus", sheetTaskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for unknown type")
		}
		if err := worker.handleSheetTask(ctx, TaskDelete, sheetTaskPayload{}); err == nil {
			t.Fatalf("expected error for missing booking id")
		}
	})
}

func TestEnqueueBookingValidation(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueBooking(ctx, "", &models.Booking{ID: 1}); err == nil {
		t.Fatalf("expected error for empty task type")
	}
	if err := worker.EnqueueBooking(ctx, TaskUpsert, nil); err == nil {
		t.Fatalf("expected error for nil booking")
	}
	if err := worker.EnqueueBooking(ctx, TaskUpsert, &models.Booking{}); err == nil {
		t.Fatalf("expected error for missing booking id")
	}
}

func TestEnqueueBookingThroughRedis(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	booking := createBooking(t, db)
	worker := NewSheetsWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueBooking(ctx, TaskUpsert, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("expected task to go through redis, not memory")
	}
	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	if task.BookingID != booking.ID {
		t.Fatalf("expected booking %d, got %d", booking.ID, task.BookingID)
	}
}

func TestSubscribeMapsEvents(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	bus := events.NewEventBus(nil)
	worker.Subscribe(bus)

	cases := map[string]string{
		events.EventBookingCreated:   TaskUpsert,
		events.EventBookingPaid:      TaskUpsert,
		events.EventBookingCancelled: TaskUpdateStatus,
		events.EventBookingDeleted:   TaskDelete,
	}
	for eventType, want := range cases {
		payload := events.BookingEventPayload{BookingID: 42, Status: models.BookingStatusCancelled}
		if err := bus.PublishJSON(eventType, payload); err != nil {
			t.Fatalf("publish: %v", err)
		}
		task, ok := worker.tryLocalQueue()
		if !ok {
			t.Fatalf("%s: expected queued task", eventType)
		}
		if task.TaskType != want {
			t.Fatalf("%s: expected %s, got %s", eventType, want, task.TaskType)
		}
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}
}

func TestRetryPolicyJitter(t *testing.T) {
	policy := RetryPolicy{InitialDelay: 10 * time.Second, BackoffFactor: 2, MaxDelay: time.Minute, Jitter: 0.5}

	policy.random = func() float64 { return 0 }
	if d := policy.NextDelay(1); d != 5*time.Second {
		t.Fatalf("low jitter expected 5s, got %s", d)
	}
	policy.random = func() float64 { return 1 }
	if d := policy.NextDelay(1); d != 15*time.Second {
		t.Fatalf("high jitter expected 15s, got %s", d)
	}
	if d := policy.NextDelay(4); d != time.Minute {
		t.Fatalf("jittered delay expected capped 1m, got %s", d)
	}

	policy.random = nil
	for i := 0; i < 50; i++ {
		d := policy.NextDelay(2)
		if d < 10*time.Second || d > 30*time.Second {
			t.Fatalf("attempt2 delay %s outside jitter window", d)
		}
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	if policy.Exhausted(2) {
		t.Fatalf("attempt 2 of 3 should retry")
	}
	if !policy.Exhausted(3) {
		t.Fatalf("attempt 3 of 3 should fail")
	}
	if (RetryPolicy{}).Exhausted(100) {
		t.Fatalf("zero MaxRetries never exhausts")
	}
}

func TestRetryPolicyNextRetryAtIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2024, 4, 10, 12, 0, 0, 0, loc)
	got := RetryPolicy{InitialDelay: 2 * time.Second}.NextRetryAt(now, 1)
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", got.Location())
	}
	if !got.Equal(now.Add(2 * time.Second)) {
		t.Fatalf("expected %s, got %s", now.Add(2*time.Second), got)
	}
}

// Helpers

type fakeSheets struct {
	err         error
	upsertCalls int
	deleteCalls int
	statusCalls int
	lastUpsert  *models.Booking
}

func (f *fakeSheets) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.upsertCalls++
	f.lastUpsert = b
	return f.err
}

func (f *fakeSheets) DeleteBookingRow(_ context.Context, _ int64) error {
	f.deleteCalls++
	return f.err
}

func (f *fakeSheets) UpdateBookingStatus(_ context.Context, _ int64, _ string) error {
	f.statusCalls++
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createBooking(t *testing.T, db *database.DB) *models.Booking {
	t.Helper()
	ctx := context.Background()
	host := &models.User{Email: "host@example.com", Name: "Host", PasswordHash: "x"}
	guest := &models.User{Email: "guest@example.com", Name: "Guest", PasswordHash: "x"}
	for _, u := range []*models.User{host, guest} {
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	room := &models.Room{HostID: host.ID, Title: "Loft", Type: "apartment", Location: "Porto", Price: 100, MaxGuests: 2}
	if err := db.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	start := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	b := &models.Booking{RoomID: room.ID, StartDate: start, EndDate: start.AddDate(0, 0, 2), Nights: 2, Price: 200}
	if err := db.ForUser(guest.ID).CreateBooking(ctx, b); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
