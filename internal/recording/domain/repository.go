package domain

import (
	"context"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID   snowflake.ID
	Variant  promptdomain.Variant
	Verified *bool
	// Cursor bounds, exclusive. Zero values start from the newest row.
	BeforeCreatedAt time.Time
	BeforeID        snowflake.ID
	Limit           int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, recording *Recording) error
	ExistsForUserPrompt(ctx context.Context, db *gorm.DB, userID, promptID snowflake.ID) (bool, error)
	FindOwned(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID) ([]OwnedRecording, error)
	MarkVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID, verifiedBy string, now time.Time) (int64, error)
	DeleteOwned(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Recording, error)
	Stats(ctx context.Context, db *gorm.DB, variant promptdomain.Variant) (*VerificationStats, error)
}
