package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Allocate(ctx context.Context, userID snowflake.ID, variant Variant) (*Response, error)
	Get(ctx context.Context, variant Variant, ref string) (*Response, error)
	Import(ctx context.Context, variant Variant, payload []byte) (*ImportResult, error)
	Stats(ctx context.Context, variant Variant) (*PoolStats, error)
}

// Picker chooses an index in [0, n). Allocation uses it to pick uniformly among eligible prompts.
type Picker interface {
	IntN(n int) int
}

type Response struct {
	ID           string        `json:"id"`
	Variant      Variant       `json:"variant"`
	PromptID     string        `json:"prompt_id"`
	TextID       string        `json:"text_id,omitempty"`
	Prompt       string        `json:"prompt"`
	Emotions     string        `json:"emotions,omitempty"`
	Domain       string        `json:"domain,omitempty"`
	LanguageTags []LanguageTag `json:"language_tags,omitempty"`
	MaxUsers     int           `json:"max_users"`
	UserCount    int           `json:"user_count"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
}

type ImportResult struct {
	InsertedCount int `json:"inserted_count"`
	SkippedCount  int `json:"skipped_count"`
	TotalReceived int `json:"total_received"`
}

var (
	ErrInvalidVariant       = errors.New("invalid_variant")
	ErrInvalidID            = errors.New("invalid_prompt_id")
	ErrNotFound             = errors.New("prompt_not_found")
	ErrNoAvailablePrompts   = errors.New("no_available_prompts")
	ErrInvalidImportPayload = errors.New("invalid_import_payload")
	ErrNoValidPrompts       = errors.New("no_valid_prompts")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
