package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Eligibility(ctx context.Context, userID snowflake.ID) (*Eligibility, error)
	Settle(ctx context.Context, actor identitydomain.Subject, userID string) (*Response, error)
	RequestPayout(ctx context.Context, subject identitydomain.Subject) (*Response, error)
	SettleUser(ctx context.Context, userID snowflake.ID, status Status, processedBy string) (*Response, error)
	UpdateStatus(ctx context.Context, actor identitydomain.Subject, id string, req UpdateStatusRequest) (*Response, error)
	History(ctx context.Context, userID snowflake.ID) (*History, error)
	ListEligibleUsers(ctx context.Context) ([]EligibleUser, error)
	Receipt(ctx context.Context, subject identitydomain.Subject, id string) (*ReceiptFile, error)
}

type Eligibility struct {
	UnpaidVerifiedCount int64      `json:"unpaid_verified_count"`
	ScriptedCount       int64      `json:"scripted_count"`
	FreeformCount       int64      `json:"freeform_count"`
	EligibleBatches     int64      `json:"eligible_batches"`
	Remainder           int64      `json:"remainder"`
	Missing             int64      `json:"missing"`
	Threshold           int        `json:"threshold"`
	AmountPerBatch      int64      `json:"amount_per_batch"`
	EligibleAmount      int64      `json:"eligible_amount"`
	Currency            string     `json:"currency"`
	NextPaymentAt       *time.Time `json:"next_payment_at,omitempty"`
	CanRequestPayment   bool       `json:"can_request_payment"`
}

type EligibleUser struct {
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	UnpaidVerified  int64  `json:"unpaid_verified"`
	ScriptedCount   int64  `json:"scripted_count"`
	FreeformCount   int64  `json:"freeform_count"`
	EligibleBatches int64  `json:"eligible_batches"`
	EligibleAmount  int64  `json:"eligible_amount"`
	Remainder       int64  `json:"remainder"`
}

type UpdateStatusRequest struct {
	Status    string `json:"status"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

type Response struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Units         int        `json:"units"`
	Threshold     int        `json:"threshold"`
	TotalCount    int        `json:"total_count"`
	ScriptedCount int        `json:"scripted_count"`
	FreeformCount int        `json:"freeform_count"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        Status     `json:"status"`
	Method        string     `json:"method,omitempty"`
	Reference     string     `json:"reference,omitempty"`
	AdminNotes    string     `json:"admin_notes,omitempty"`
	ProcessedBy   string     `json:"processed_by,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type HistorySummary struct {
	TotalEarned         int64 `json:"total_earned"`
	PendingAmount       int64 `json:"pending_amount"`
	TotalRecordingsPaid int64 `json:"total_recordings_paid"`
	PaidPayments        int   `json:"paid_payments"`
	PendingPayments     int   `json:"pending_payments"`
}

type History struct {
	Payments []*Response    `json:"payments"`
	Summary  HistorySummary `json:"summary"`
}

type ReceiptFile struct {
	FileName string
	Content  []byte
}

var (
	ErrInvalidID              = errors.New("invalid_payment_id")
	ErrInvalidUserID          = errors.New("invalid_user_id")
	ErrNotFound               = errors.New("payment_not_found")
	ErrInvalidStatus          = errors.New("invalid_payment_status")
	ErrInvalidTransition      = errors.New("invalid_payment_transition")
	ErrInsufficientRecordings = errors.New("insufficient_recordings")
	ErrConcurrentSettlement   = errors.New("concurrent_settlement")
	ErrSettlementInProgress   = errors.New("settlement_in_progress")
)

// InsufficientRecordingsError reports how far a user is from the next payment unit.
type InsufficientRecordingsError struct {
	Available int64
	Required  int64
	Missing   int64
}

func (e *InsufficientRecordingsError) Error() string {
	return fmt.Sprintf("insufficient_recordings: %d of %d verified, %d missing", e.Available, e.Required, e.Missing)
}

func (e *InsufficientRecordingsError) Is(target error) bool {
	return target == ErrInsufficientRecordings
}

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
