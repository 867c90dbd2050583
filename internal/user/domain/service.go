package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	Counters(ctx context.Context, id snowflake.ID) (*Counters, error)

	// SetSuspended and SetRole are idempotent. They take effect on the holder's next
	// authenticated request because sessions read both columns on every lookup.
	SetSuspended(ctx context.Context, id string, suspended bool) (*Response, error)
	SetRole(ctx context.Context, id string, role Role) (*Response, error)
}

type CreateRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
}

type Response struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	Suspended   bool      `json:"suspended"`
	CreatedAt   time.Time `json:"created_at"`
}

type VariantCounters struct {
	Total   int64 `json:"total"`
	Today   int64 `json:"today"`
	Deleted int64 `json:"deleted"`
}

type Counters struct {
	UserID              string          `json:"user_id"`
	Scripted            VariantCounters `json:"scripted"`
	Freeform            VariantCounters `json:"freeform"`
	TotalPaidAmount     int64           `json:"total_paid_amount"`
	TotalPaidRecordings int64           `json:"total_paid_recordings"`
}

var (
	ErrInvalidID          = errors.New("invalid_user_id")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrEmailTaken         = errors.New("email_taken")
	ErrNotFound           = errors.New("user_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
