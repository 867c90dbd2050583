package domain

import (
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
)

// Recording is one uploaded audio response to a prompt.
type Recording struct {
	ID          snowflake.ID         `json:"id" gorm:"primaryKey"`
	Variant     promptdomain.Variant `json:"variant" gorm:"type:varchar(16);not null"`
	UserID      snowflake.ID         `json:"user_id" gorm:"not null;uniqueIndex:ux_recordings_user_prompt,priority:1;index:ix_recordings_user_state,priority:1"`
	PromptID    snowflake.ID         `json:"prompt_id" gorm:"not null;uniqueIndex:ux_recordings_user_prompt,priority:2;index"`
	AudioKey    string               `json:"audio_key" gorm:"type:varchar(512);not null"`
	AudioURL    string               `json:"audio_url" gorm:"type:text;not null"`
	ContentType string               `json:"content_type" gorm:"type:varchar(128)"`
	SizeBytes   int64                `json:"size_bytes" gorm:"not null;default:0"`
	Checksum    string               `json:"checksum" gorm:"type:varchar(64)"`
	Answer      string               `json:"answer,omitempty" gorm:"type:text"`
	IsVerified  bool                 `json:"is_verified" gorm:"not null;default:false;index:ix_recordings_user_state,priority:2"`
	VerifiedAt  *time.Time           `json:"verified_at,omitempty"`
	VerifiedBy  string               `json:"verified_by,omitempty" gorm:"type:varchar(64)"`
	IsPaidFor   bool                 `json:"is_paid_for" gorm:"not null;default:false;index:ix_recordings_user_state,priority:3"`
	PaymentID   *snowflake.ID        `json:"payment_id,omitempty" gorm:"index"`
	CreatedAt   time.Time            `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time            `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Recording) TableName() string { return "recordings" }

// OwnedRecording is a recording row joined with its prompt text.
type OwnedRecording struct {
	ID         snowflake.ID
	PromptID   snowflake.ID
	Variant    promptdomain.Variant
	AudioKey   string
	IsVerified bool
	PromptText string
}

// VerificationStats counts recordings by review state.
type VerificationStats struct {
	Total      int64 `json:"total"`
	Verified   int64 `json:"verified"`
	Unverified int64 `json:"unverified"`
	Paid       int64 `json:"paid"`
}
