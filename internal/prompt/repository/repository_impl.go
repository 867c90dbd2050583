package repository

import (
	"context"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

const promptColumns = `id, variant, sequence_id, text_id, prompt, emotions, domain, language_tags,
	max_users, user_count, active, created_at, updated_at`

type repo struct{}

func Provide() promptdomain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, prompts []promptdomain.Prompt) (int64, error) {
	if len(prompts) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant"}, {Name: "sequence_id"}},
			DoNothing: true,
		}).
		CreateInBatches(&prompts, insertBatchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, variant promptdomain.Variant, id snowflake.ID) (*promptdomain.Prompt, error) {
	var prompt promptdomain.Prompt
	err := db.WithContext(ctx).Raw(
		`SELECT `+promptColumns+`
		 FROM prompts WHERE variant = ? AND id = ?`,
		variant,
		id,
	).Scan(&prompt).Error
	if err != nil {
		return nil, err
	}
	if prompt.ID == 0 {
		return nil, nil
	}
	return &prompt, nil
}

func (r *repo) FindBySequenceID(ctx context.Context, db *gorm.DB, variant promptdomain.Variant, sequenceID string) (*promptdomain.Prompt, error) {
	var prompt promptdomain.Prompt
	err := db.WithContext(ctx).Raw(
		`SELECT `+promptColumns+`
		 FROM prompts WHERE variant = ? AND sequence_id = ?`,
		variant,
		sequenceID,
	).Scan(&prompt).Error
	if err != nil {
		return nil, err
	}
	if prompt.ID == 0 {
		return nil, nil
	}
	return &prompt, nil
}

func (r *repo) CountEligible(ctx context.Context, db *gorm.DB, variant promptdomain.Variant, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM prompts p
		 WHERE p.variant = ? AND p.active = ? AND p.user_count < p.max_users
		   AND p.id NOT IN (SELECT r.prompt_id FROM recordings r WHERE r.user_id = ?)`,
		variant,
		true,
		userID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) FindEligibleAt(ctx context.Context, db *gorm.DB, variant promptdomain.Variant, userID snowflake.ID, offset int64) (*promptdomain.Prompt, error) {
	var prompt promptdomain.Prompt
	err := db.WithContext(ctx).Raw(
		`SELECT `+promptColumns+`
		 FROM prompts p
		 WHERE p.variant = ? AND p.active = ? AND p.user_count < p.max_users
		   AND p.id NOT IN (SELECT r.prompt_id FROM recordings r WHERE r.user_id = ?)
		 ORDER BY p.id ASC
		 LIMIT 1 OFFSET ?`,
		variant,
		true,
		userID,
		offset,
	).Scan(&prompt).Error
	if err != nil {
		return nil, err
	}
	if prompt.ID == 0 {
		return nil, nil
	}
	return &prompt, nil
}

// active is assigned before user_count so MySQL, which applies SET clauses left to
// right, still evaluates it against the pre-increment count.
func (r *repo) ClaimSlot(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE prompts
		 SET active = CASE WHEN user_count + 1 < max_users THEN ? ELSE ? END,
		     user_count = user_count + 1,
		     updated_at = ?
		 WHERE id = ? AND active = ? AND user_count < max_users`,
		true,
		false,
		now,
		id,
		true,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ReleaseSlots(ctx context.Context, db *gorm.DB, id snowflake.ID, count int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE prompts
		 SET user_count = CASE WHEN user_count >= ? THEN user_count - ? ELSE 0 END,
		     active = ?,
		     updated_at = ?
		 WHERE id = ?`,
		count,
		count,
		true,
		now,
		id,
	).Error
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, variant promptdomain.Variant) (*promptdomain.PoolStats, error) {
	var stats promptdomain.PoolStats
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total_prompts,
		        COALESCE(SUM(CASE WHEN active = ? AND user_count < max_users THEN 1 ELSE 0 END), 0) AS active_prompts,
		        COALESCE(SUM(CASE WHEN user_count >= max_users THEN 1 ELSE 0 END), 0) AS exhausted_prompts,
		        COALESCE(SUM(max_users), 0) AS total_capacity,
		        COALESCE(SUM(user_count), 0) AS used_capacity
		 FROM prompts WHERE variant = ?`,
		true,
		variant,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
