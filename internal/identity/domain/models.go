// Package domain contains the session and subject types of the identity service.
package domain

import (
	"time"

	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
)

// Session represents a persisted bearer-token session.
type Session struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash  string       `gorm:"column:token_hash;type:varchar(64);not null;uniqueIndex:ux_auth_sessions_token_hash"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt  *time.Time   `gorm:"column:revoked_at"`
	CreatedAt  time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "auth_sessions" }

// SessionRecord is a session joined with the owning user's identity fields.
type SessionRecord struct {
	SessionID   snowflake.ID
	UserID      snowflake.ID
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	DisplayName string
	Role        userdomain.Role
	Suspended   bool
}

// Subject is the authenticated caller handed to every core operation.
type Subject struct {
	UserID      snowflake.ID    `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Role        userdomain.Role `json:"role"`
}

func (s Subject) IsZero() bool {
	return s.UserID == 0
}

func (s Subject) IsAdmin() bool {
	return s.Role.IsAdmin()
}

// ActorID is the identifier recorded in audit columns such as verified_by.
func (s Subject) ActorID() string {
	if s.UserID == 0 {
		return ""
	}
	return s.UserID.String()
}
