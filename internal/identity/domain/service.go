package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Authenticate(ctx context.Context, rawToken string) (Subject, error)
	IssueSession(ctx context.Context, userID snowflake.ID) (*IssuedSession, error)
	Login(ctx context.Context, req LoginRequest) (*IssuedSession, error)
	Logout(ctx context.Context, rawToken string) error
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrUserSuspended      = errors.New("user_suspended")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)
