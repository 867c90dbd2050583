package repository

import (
	"context"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() recordingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *recordingdomain.Recording) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recordings (
			id, variant, user_id, prompt_id, audio_key, audio_url, content_type, size_bytes,
			checksum, answer, is_verified, is_paid_for, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Variant,
		rec.UserID,
		rec.PromptID,
		rec.AudioKey,
		rec.AudioURL,
		rec.ContentType,
		rec.SizeBytes,
		rec.Checksum,
		rec.Answer,
		false,
		false,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Error
}

func (r *repo) ExistsForUserPrompt(ctx context.Context, db *gorm.DB, userID, promptID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM recordings WHERE user_id = ? AND prompt_id = ?`,
		userID,
		promptID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindOwned(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID) ([]recordingdomain.OwnedRecording, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []recordingdomain.OwnedRecording
	err := db.WithContext(ctx).Raw(
		`SELECT r.id, r.prompt_id, r.variant, r.audio_key, r.is_verified,
		        COALESCE(p.prompt, '') AS prompt_text
		 FROM recordings r
		 LEFT JOIN prompts p ON p.id = r.prompt_id
		 WHERE r.user_id = ? AND r.id IN ?
		 ORDER BY r.id`,
		userID,
		ids,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MarkVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID, verifiedBy string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE recordings
		 SET is_verified = ?, verified_at = ?, verified_by = ?, updated_at = ?
		 WHERE id IN ? AND user_id = ? AND is_verified = ?`,
		true,
		now,
		verifiedBy,
		now,
		ids,
		userID,
		false,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) DeleteOwned(ctx context.Context, db *gorm.DB, userID snowflake.ID, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := db.WithContext(ctx).Exec(
		`DELETE FROM recordings WHERE id IN ? AND user_id = ?`,
		ids,
		userID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter recordingdomain.ListFilter) ([]*recordingdomain.Recording, error) {
	query := db.WithContext(ctx).
		Model(&recordingdomain.Recording{}).
		Where("user_id = ?", filter.UserID)

	if filter.Variant != "" {
		query = query.Where("variant = ?", filter.Variant)
	}
	if filter.Verified != nil {
		query = query.Where("is_verified = ?", *filter.Verified)
	}
	if !filter.BeforeCreatedAt.IsZero() {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.BeforeCreatedAt,
			filter.BeforeCreatedAt,
			filter.BeforeID,
		)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []*recordingdomain.Recording
	if err := query.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, variant promptdomain.Variant) (*recordingdomain.VerificationStats, error) {
	var stats recordingdomain.VerificationStats
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS total,
		        COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified,
		        COALESCE(SUM(CASE WHEN is_verified THEN 0 ELSE 1 END), 0) AS unverified,
		        COALESCE(SUM(CASE WHEN is_paid_for THEN 1 ELSE 0 END), 0) AS paid
		 FROM recordings
		 WHERE variant = ?`,
		variant,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
