package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, prompts []Prompt) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, variant Variant, id snowflake.ID) (*Prompt, error)
	FindBySequenceID(ctx context.Context, db *gorm.DB, variant Variant, sequenceID string) (*Prompt, error)
	CountEligible(ctx context.Context, db *gorm.DB, variant Variant, userID snowflake.ID) (int64, error)
	FindEligibleAt(ctx context.Context, db *gorm.DB, variant Variant, userID snowflake.ID, offset int64) (*Prompt, error)

	// ClaimSlot increments user_count only while the prompt is active and below
	// max_users, deactivating it when the last slot is taken. It returns rows affected.
	ClaimSlot(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	// ReleaseSlots decrements user_count by count (never below zero) and reactivates the prompt.
	ReleaseSlots(ctx context.Context, db *gorm.DB, id snowflake.ID, count int64, now time.Time) error

	Stats(ctx context.Context, db *gorm.DB, variant Variant) (*PoolStats, error)
}
