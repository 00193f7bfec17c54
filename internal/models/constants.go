package models

const (
	BookingStatusActive    = "active"
	BookingStatusCancelled = "cancelled"
	BookingStatusPaid      = "paid"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	// DateLayout is the calendar-date wire format for stay dates.
	DateLayout = "2006-01-02"

	// SheetTimeLayout is used for timestamps written to spreadsheets and exports.
	SheetTimeLayout = "2006-01-02 15:04:05"
)
