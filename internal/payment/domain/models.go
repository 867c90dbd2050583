package domain

import (
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusPaid, StatusFailed},
	StatusProcessing: {StatusPaid, StatusFailed},
	StatusFailed:     {StatusPending},
}

func ParseStatus(value string) (Status, bool) {
	switch s := Status(value); s {
	case StatusPending, StatusProcessing, StatusPaid, StatusFailed:
		return s, true
	default:
		return "", false
	}
}

// CanTransition reports whether a batch may move from s to next. Paid is terminal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Batch is one settlement sweep: every whole threshold unit a user had available.
type Batch struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;index"`
	Units         int          `json:"units" gorm:"not null"`
	Threshold     int          `json:"threshold" gorm:"not null"`
	TotalCount    int          `json:"total_count" gorm:"not null"`
	ScriptedCount int          `json:"scripted_count" gorm:"not null"`
	FreeformCount int          `json:"freeform_count" gorm:"not null"`
	Amount        int64        `json:"amount" gorm:"not null"`
	Currency      string       `json:"currency" gorm:"type:varchar(8);not null"`
	Status        Status       `json:"status" gorm:"type:varchar(16);not null;index"`
	Method        string       `json:"method" gorm:"type:varchar(64)"`
	Reference     string       `json:"reference" gorm:"type:varchar(191)"`
	AdminNotes    string       `json:"admin_notes" gorm:"type:text"`
	ProcessedBy   string       `json:"processed_by" gorm:"type:varchar(64)"`
	PaidAt        *time.Time   `json:"paid_at"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Batch) TableName() string { return "payment_batches" }

// BatchItem links one consumed recording to its batch.
type BatchItem struct {
	ID          snowflake.ID         `json:"id" gorm:"primaryKey"`
	PaymentID   snowflake.ID         `json:"payment_id" gorm:"not null;index"`
	RecordingID snowflake.ID         `json:"recording_id" gorm:"not null;uniqueIndex:ux_payment_batch_items_recording"`
	Variant     promptdomain.Variant `json:"variant" gorm:"type:varchar(16);not null"`
	Position    int                  `json:"position" gorm:"not null"`
	RecordedAt  time.Time            `json:"recorded_at" gorm:"not null"`
}

// TableName sets the database table name.
func (BatchItem) TableName() string { return "payment_batch_items" }

// UnpaidRecording is a verified recording that no batch has consumed yet.
type UnpaidRecording struct {
	ID        snowflake.ID
	Variant   promptdomain.Variant
	CreatedAt time.Time
}

type UnpaidCounts struct {
	Scripted int64
	Freeform int64
}

func (c UnpaidCounts) Total() int64 { return c.Scripted + c.Freeform }

type EligibleUserRow struct {
	UserID      snowflake.ID
	DisplayName string
	Email       string
	Scripted    int64
	Freeform    int64
}
