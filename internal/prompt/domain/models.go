package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Variant distinguishes the two prompt pools. Both pools share one schema.
type Variant string

const (
	VariantScripted Variant = "scripted"
	VariantFreeform Variant = "freeform"
)

const DefaultMaxUsers = 3

// ParseVariant accepts the canonical names plus the legacy "regular" and "natural" aliases.
func ParseVariant(value string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(VariantScripted), "regular":
		return VariantScripted, nil
	case string(VariantFreeform), "natural":
		return VariantFreeform, nil
	default:
		return "", ErrInvalidVariant
	}
}

// RequiresAnswer reports whether uploads for the variant must carry a text answer.
func (v Variant) RequiresAnswer() bool {
	return v == VariantFreeform
}

// RequiresTextID reports whether imported prompts must carry an external text id.
func (v Variant) RequiresTextID() bool {
	return v == VariantScripted
}

type LanguageTag struct {
	Language string `json:"language"`
	Word     string `json:"word"`
}

// Prompt is one entry of a prompt pool with its capacity counters.
type Prompt struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	Variant      Variant        `json:"variant" gorm:"type:varchar(16);not null;uniqueIndex:ux_prompts_variant_sequence,priority:1;index:ix_prompts_variant_active,priority:1"`
	SequenceID   string         `json:"prompt_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_prompts_variant_sequence,priority:2"`
	TextID       string         `json:"text_id" gorm:"type:varchar(191)"`
	Text         string         `json:"prompt" gorm:"column:prompt;type:text;not null"`
	Emotions     string         `json:"emotions" gorm:"type:varchar(64)"`
	Domain       string         `json:"domain" gorm:"type:varchar(64)"`
	LanguageTags datatypes.JSON `json:"language_tags"`
	MaxUsers     int            `json:"max_users" gorm:"not null;default:3"`
	UserCount    int            `json:"user_count" gorm:"not null;default:0"`
	Active       bool           `json:"active" gorm:"not null;default:true;index:ix_prompts_variant_active,priority:2"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Prompt) TableName() string { return "prompts" }

// Ref is the identifier embedded in blob keys: the external text id for scripted
// prompts and the sequence id for freeform prompts.
func (p Prompt) Ref() string {
	if p.Variant == VariantScripted && strings.TrimSpace(p.TextID) != "" {
		return p.TextID
	}
	return p.SequenceID
}

// HasCapacity reports whether another user may still record the prompt.
func (p Prompt) HasCapacity() bool {
	return p.UserCount < p.MaxUsers
}

// PoolStats aggregates capacity usage over one variant.
type PoolStats struct {
	TotalPrompts     int64 `json:"total_prompts"`
	ActivePrompts    int64 `json:"active_prompts"`
	ExhaustedPrompts int64 `json:"exhausted_prompts"`
	TotalCapacity    int64 `json:"total_capacity"`
	UsedCapacity     int64 `json:"used_capacity"`
}
