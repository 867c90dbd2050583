package repository

import (
	"context"
	"time"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() identitydomain.Repository {
	return &repo{}
}

func (r *repo) InsertSession(ctx context.Context, db *gorm.DB, s *identitydomain.Session) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO auth_sessions (id, user_id, token_hash, expires_at, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.TokenHash,
		s.ExpiresAt,
		s.CreatedAt,
		s.LastSeenAt,
	).Error
}

func (r *repo) FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*identitydomain.SessionRecord, error) {
	var record identitydomain.SessionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT s.id AS session_id, s.user_id, s.expires_at, s.revoked_at,
		        u.display_name, u.role, u.suspended
		 FROM auth_sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = ?`,
		tokenHash,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.SessionID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) TouchSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE auth_sessions SET last_seen_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}

func (r *repo) RevokeSession(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE auth_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		now,
		id,
	).Error
}
