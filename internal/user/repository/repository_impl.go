package repository

import (
	"context"
	"fmt"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const userColumns = `id, display_name, email, password_hash, role, suspended,
	total_scripted, total_freeform, daily_scripted, daily_freeform,
	deleted_scripted, deleted_freeform, last_scripted_date, last_freeform_date,
	total_paid_amount, total_paid_recordings, created_at, updated_at`

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, u *userdomain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, display_name, email, password_hash, role, suspended,
			last_scripted_date, last_freeform_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.DisplayName,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.Suspended,
		u.LastScriptedDate,
		u.LastFreeformDate,
		u.CreatedAt,
		u.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) RecordUpload(ctx context.Context, db *gorm.DB, id snowflake.ID, variant promptdomain.Variant, day string, now time.Time) (int64, error) {
	var query string
	switch variant {
	case promptdomain.VariantScripted:
		query = `UPDATE users
		 SET total_scripted = total_scripted + 1,
		     daily_scripted = CASE WHEN last_scripted_date = ? THEN daily_scripted + 1 ELSE 1 END,
		     last_scripted_date = ?,
		     updated_at = ?
		 WHERE id = ?`
	case promptdomain.VariantFreeform:
		query = `UPDATE users
		 SET total_freeform = total_freeform + 1,
		     daily_freeform = CASE WHEN last_freeform_date = ? THEN daily_freeform + 1 ELSE 1 END,
		     last_freeform_date = ?,
		     updated_at = ?
		 WHERE id = ?`
	default:
		return 0, fmt.Errorf("record upload: %w", promptdomain.ErrInvalidVariant)
	}

	result := db.WithContext(ctx).Exec(query, day, day, now, id)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) RecordDeletions(ctx context.Context, db *gorm.DB, id snowflake.ID, scripted, freeform int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET deleted_scripted = deleted_scripted + ?,
		     deleted_freeform = deleted_freeform + ?,
		     updated_at = ?
		 WHERE id = ?`,
		scripted,
		freeform,
		now,
		id,
	).Error
}

func (r *repo) AddPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, amount, recordings int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET total_paid_amount = total_paid_amount + ?,
		     total_paid_recordings = total_paid_recordings + ?,
		     updated_at = ?
		 WHERE id = ?`,
		amount,
		recordings,
		now,
		id,
	).Error
}

func (r *repo) UpdateSuspended(ctx context.Context, db *gorm.DB, id snowflake.ID, suspended bool, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET suspended = ?, updated_at = ?
		 WHERE id = ? AND suspended <> ?`,
		suspended,
		now,
		id,
		suspended,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) UpdateRole(ctx context.Context, db *gorm.DB, id snowflake.ID, role userdomain.Role, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET role = ?, updated_at = ?
		 WHERE id = ? AND role <> ?`,
		role,
		now,
		id,
		role,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
