package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type StatusChange struct {
	From        Status
	To          Status
	Method      string
	Reference   string
	AdminNotes  string
	ProcessedBy string
	PaidAt      *time.Time
	Now         time.Time
}

type Repository interface {
	ListUnpaidVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]UnpaidRecording, error)
	CountUnpaidVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID) (UnpaidCounts, error)
	ListEligibleUsers(ctx context.Context, db *gorm.DB, threshold int) ([]EligibleUserRow, error)

	InsertBatch(ctx context.Context, db *gorm.DB, batch *Batch) error
	InsertItems(ctx context.Context, db *gorm.DB, items []BatchItem) error
	// ConsumeRecordings marks the given verified, unpaid recordings as paid by paymentID
	// and returns rows affected.
	ConsumeRecordings(ctx context.Context, db *gorm.DB, userID, paymentID snowflake.ID, ids []snowflake.ID, now time.Time) (int64, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Batch, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Batch, error)
	ListItems(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]BatchItem, error)
	LastPaidAt(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*time.Time, error)
	// UpdateStatus applies change only while the batch is still in change.From.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, change StatusChange) (int64, error)
}
