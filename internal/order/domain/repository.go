package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByPrintJob(ctx context.Context, db *gorm.DB, printJobID int64) (*Order, error)

	// UpdateStatus moves an order from one of the given source statuses to
	// the target status. Returns false without error when no row matched,
	// which callers use to detect replays and stale transitions.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status, now time.Time) (bool, error)

	// MarkPaymentReceived is UpdateStatus from pending plus recording the
	// payment reference and charged amount in the same statement.
	MarkPaymentReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, pay PaymentConfirmation, now time.Time) (bool, error)

	// MarkSubmitted records the print job id and document URLs while
	// moving processing to submitted in a single guarded statement.
	MarkSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID, printJobID int64, pageCount int, interiorURL, coverURL string, now time.Time) (bool, error)

	SetTracking(ctx context.Context, db *gorm.DB, id snowflake.ID, trackingNumber, trackingURL string, now time.Time) error
}

// ContentProvider loads the story content behind an order.
type ContentProvider interface {
	Content(ctx context.Context, creationID snowflake.ID) (*Creation, error)
}
