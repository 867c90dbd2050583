package domain

import (
	"context"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)

	// RecordUpload bumps the lifetime and daily counters for the variant. The daily
	// counter restarts at 1 when the stored day differs from day.
	RecordUpload(ctx context.Context, db *gorm.DB, id snowflake.ID, variant promptdomain.Variant, day string, now time.Time) (int64, error)
	RecordDeletions(ctx context.Context, db *gorm.DB, id snowflake.ID, scripted, freeform int64, now time.Time) error
	AddPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, amount, recordings int64, now time.Time) error

	// UpdateSuspended and UpdateRole only touch the row when the value changes and
	// report the affected row count.
	UpdateSuspended(ctx context.Context, db *gorm.DB, id snowflake.ID, suspended bool, now time.Time) (int64, error)
	UpdateRole(ctx context.Context, db *gorm.DB, id snowflake.ID, role Role, now time.Time) (int64, error)
}
