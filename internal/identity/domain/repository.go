package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertSession(ctx context.Context, db *gorm.DB, session *Session) error
	FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*SessionRecord, error)
	TouchSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	RevokeSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
}
