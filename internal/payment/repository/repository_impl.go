package repository

import (
	"context"
	"time"

	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const itemInsertBatchSize = 200

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) ListUnpaidVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]paymentdomain.UnpaidRecording, error) {
	var rows []paymentdomain.UnpaidRecording
	err := db.WithContext(ctx).Raw(
		`SELECT id, variant, created_at
		 FROM recordings
		 WHERE user_id = ? AND is_verified = ? AND is_paid_for = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
		true,
		false,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CountUnpaidVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID) (paymentdomain.UnpaidCounts, error) {
	var counts paymentdomain.UnpaidCounts
	err := db.WithContext(ctx).Raw(
		`SELECT
		    COALESCE(SUM(CASE WHEN variant = ? THEN 1 ELSE 0 END), 0) AS scripted,
		    COALESCE(SUM(CASE WHEN variant = ? THEN 1 ELSE 0 END), 0) AS freeform
		 FROM recordings
		 WHERE user_id = ? AND is_verified = ? AND is_paid_for = ?`,
		promptdomain.VariantScripted,
		promptdomain.VariantFreeform,
		userID,
		true,
		false,
	).Scan(&counts).Error
	if err != nil {
		return paymentdomain.UnpaidCounts{}, err
	}
	return counts, nil
}

func (r *repo) ListEligibleUsers(ctx context.Context, db *gorm.DB, threshold int) ([]paymentdomain.EligibleUserRow, error) {
	var rows []paymentdomain.EligibleUserRow
	err := db.WithContext(ctx).Raw(
		`SELECT u.id AS user_id, u.display_name, u.email,
		    SUM(CASE WHEN r.variant = ? THEN 1 ELSE 0 END) AS scripted,
		    SUM(CASE WHEN r.variant = ? THEN 1 ELSE 0 END) AS freeform
		 FROM recordings r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.is_verified = ? AND r.is_paid_for = ?
		 GROUP BY u.id, u.display_name, u.email
		 HAVING COUNT(r.id) >= ?
		 ORDER BY COUNT(r.id) DESC, u.id ASC`,
		promptdomain.VariantScripted,
		promptdomain.VariantFreeform,
		true,
		false,
		threshold,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, b *paymentdomain.Batch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_batches (
			id, user_id, units, threshold, total_count, scripted_count, freeform_count,
			amount, currency, status, method, reference, admin_notes, processed_by,
			paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.UserID,
		b.Units,
		b.Threshold,
		b.TotalCount,
		b.ScriptedCount,
		b.FreeformCount,
		b.Amount,
		b.Currency,
		b.Status,
		b.Method,
		b.Reference,
		b.AdminNotes,
		b.ProcessedBy,
		b.PaidAt,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []paymentdomain.BatchItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(&items, itemInsertBatchSize).Error
}

func (r *repo) ConsumeRecordings(ctx context.Context, db *gorm.DB, userID, paymentID snowflake.ID, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE recordings
		 SET is_paid_for = ?, payment_id = ?, updated_at = ?
		 WHERE id IN ? AND user_id = ? AND is_verified = ? AND is_paid_for = ?`,
		true,
		paymentID,
		now,
		ids,
		userID,
		true,
		false,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.Batch, error) {
	var batch paymentdomain.Batch
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, units, threshold, total_count, scripted_count, freeform_count,
		        amount, currency, status, method, reference, admin_notes, processed_by,
		        paid_at, created_at, updated_at
		 FROM payment_batches
		 WHERE id = ?`,
		id,
	).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	return &batch, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*paymentdomain.Batch, error) {
	var batches []*paymentdomain.Batch
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]paymentdomain.BatchItem, error) {
	var items []paymentdomain.BatchItem
	err := db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LastPaidAt(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*time.Time, error) {
	var batch paymentdomain.Batch
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND paid_at IS NOT NULL", userID, paymentdomain.StatusPaid).
		Order("paid_at DESC").
		Limit(1).
		Find(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	return batch.PaidAt, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, change paymentdomain.StatusChange) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_batches
		 SET status = ?,
		     method = CASE WHEN ? = '' THEN method ELSE ? END,
		     reference = CASE WHEN ? = '' THEN reference ELSE ? END,
		     admin_notes = CASE WHEN ? = '' THEN admin_notes ELSE ? END,
		     processed_by = ?,
		     paid_at = COALESCE(?, paid_at),
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		change.To,
		change.Method, change.Method,
		change.Reference, change.Reference,
		change.AdminNotes, change.AdminNotes,
		change.ProcessedBy,
		change.PaidAt,
		change.Now,
		id,
		change.From,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
