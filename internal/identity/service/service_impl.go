package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/password"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sessionTokenBytes = 32
	defaultSessionTTL = 7 * 24 * time.Hour
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Repo     identitydomain.Repository
	UserRepo userdomain.Repository
	Clock    clock.Clock `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     identitydomain.Repository
	userRepo userdomain.Repository
	clock    clock.Clock
	ttl      time.Duration
}

func New(p Params) identitydomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	ttl := p.Cfg.Auth.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("identity.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		clock:    clk,
		ttl:      ttl,
	}
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (identitydomain.Subject, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return identitydomain.Subject{}, identitydomain.ErrUnauthenticated
	}

	record, err := s.repo.FindSessionByTokenHash(ctx, s.db, hashToken(token))
	if err != nil {
		return identitydomain.Subject{}, err
	}
	if record == nil {
		return identitydomain.Subject{}, identitydomain.ErrInvalidSession
	}

	now := s.clock.Now()
	if record.RevokedAt != nil {
		return identitydomain.Subject{}, identitydomain.ErrSessionRevoked
	}
	if now.After(record.ExpiresAt) {
		return identitydomain.Subject{}, identitydomain.ErrSessionExpired
	}
	if record.Suspended {
		return identitydomain.Subject{}, identitydomain.ErrUserSuspended
	}

	if err := s.repo.TouchSession(ctx, s.db, record.SessionID, now); err != nil {
		s.log.Warn("failed to update session last seen", zap.Error(err))
	}

	return identitydomain.Subject{
		UserID:      record.UserID,
		DisplayName: record.DisplayName,
		Role:        record.Role,
	}, nil
}

func (s *Service) IssueSession(ctx context.Context, userID snowflake.ID) (*identitydomain.IssuedSession, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	if user.Suspended {
		return nil, identitydomain.ErrUserSuspended
	}
	return s.issue(ctx, user.ID)
}

func (s *Service) Login(ctx context.Context, req identitydomain.LoginRequest) (*identitydomain.IssuedSession, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || strings.TrimSpace(req.Password) == "" {
		return nil, identitydomain.ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !password.Verify(req.Password, user.PasswordHash) {
		return nil, identitydomain.ErrInvalidCredentials
	}
	if user.Suspended {
		return nil, identitydomain.ErrUserSuspended
	}

	issued, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return issued, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return identitydomain.ErrUnauthenticated
	}

	record, err := s.repo.FindSessionByTokenHash(ctx, s.db, hashToken(token))
	if err != nil {
		return err
	}
	if record == nil {
		return identitydomain.ErrInvalidSession
	}
	return s.repo.RevokeSession(ctx, s.db, record.SessionID, s.clock.Now())
}

func (s *Service) issue(ctx context.Context, userID snowflake.ID) (*identitydomain.IssuedSession, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &identitydomain.Session{
		ID:         s.genID.Generate(),
		UserID:     userID,
		TokenHash:  hashToken(rawToken),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		return nil, err
	}

	return &identitydomain.IssuedSession{
		Token:     rawToken,
		ExpiresAt: session.ExpiresAt,
		UserID:    userID.String(),
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
