package domain

import (
	"context"
	"errors"
	"io"
	"time"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, subject identitydomain.Subject, req CreateRequest) (*Response, error)
	Verify(ctx context.Context, actor identitydomain.Subject, req VerifyRequest) (*VerifyResult, error)
	Delete(ctx context.Context, actor identitydomain.Subject, req DeleteRequest) (*DeleteResult, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Stats(ctx context.Context, variant promptdomain.Variant) (*VerificationStats, error)
}

// CreateRequest carries one audio upload. Audio is read exactly once.
type CreateRequest struct {
	Variant     promptdomain.Variant
	PromptID    string
	Answer      string
	FileName    string
	ContentType string
	Size        int64
	Audio       io.Reader
}

type VerifyRequest struct {
	UserID       string
	RecordingIDs []string
	Variant      promptdomain.Variant
}

type VerifyResult struct {
	VerifiedCount   int      `json:"verified_count"`
	TotalRequested  int      `json:"total_requested"`
	NotFound        []string `json:"not_found"`
	AlreadyVerified []string `json:"already_verified"`
}

type DeleteRequest struct {
	UserID       string
	RecordingIDs []string
	Variant      promptdomain.Variant
}

type DeletedRecording struct {
	RecordingID string               `json:"recording_id"`
	PromptID    string               `json:"prompt_id"`
	PromptText  string               `json:"prompt_text"`
	Variant     promptdomain.Variant `json:"variant"`
}

type DeleteResult struct {
	DeletedCount      int                `json:"deleted_count"`
	DeletedRecordings []DeletedRecording `json:"deleted_recordings"`
	TotalRequested    int                `json:"total_requested"`
	NotFound          []string           `json:"not_found"`
}

type ListRequest struct {
	UserID   string
	Variant  promptdomain.Variant
	Verified *bool
	pagination.Pagination
}

type ListResponse struct {
	Recordings []*Response          `json:"recordings"`
	PageInfo   *pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID          string               `json:"id"`
	Variant     promptdomain.Variant `json:"variant"`
	UserID      string               `json:"user_id"`
	PromptID    string               `json:"prompt_id"`
	AudioURL    string               `json:"audio_url"`
	ContentType string               `json:"content_type,omitempty"`
	SizeBytes   int64                `json:"size_bytes"`
	Checksum    string               `json:"checksum,omitempty"`
	Answer      string               `json:"answer,omitempty"`
	IsVerified  bool                 `json:"is_verified"`
	VerifiedAt  *time.Time           `json:"verified_at,omitempty"`
	IsPaidFor   bool                 `json:"is_paid_for"`
	PaymentID   string               `json:"payment_id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

var (
	ErrInvalidPromptID      = errors.New("invalid_prompt_id")
	ErrPromptNotFound       = errors.New("prompt_not_found")
	ErrPromptInactive       = errors.New("prompt_inactive")
	ErrPromptAtCapacity     = errors.New("prompt_at_capacity")
	ErrDuplicateRecording   = errors.New("duplicate_recording")
	ErrAnswerRequired       = errors.New("answer_required")
	ErrAudioRequired        = errors.New("audio_required")
	ErrAudioTooLarge        = errors.New("audio_too_large")
	ErrInvalidUserID        = errors.New("invalid_user_id")
	ErrRecordingIDsRequired = errors.New("recording_ids_required")
	ErrRecordingNotFound    = errors.New("recording_not_found")
	ErrRecordingConflict    = errors.New("recording_conflict")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
