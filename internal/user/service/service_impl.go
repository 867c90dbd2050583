package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/password"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  userdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  userdomain.Repository
	clock clock.Clock
}

func New(p Params) userdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateRequest) (*userdomain.Response, error) {
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, userdomain.ErrInvalidDisplayName
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, userdomain.ErrInvalidEmail
	}

	role := req.Role
	if role == "" {
		role = userdomain.RoleUser
	}
	if !role.Valid() {
		return nil, userdomain.ErrInvalidRole
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &userdomain.User{
		ID:           s.genID.Generate(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, userdomain.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return toResponse(user), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*userdomain.Response, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return nil, err
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toResponse(user), nil
}

// Counters reports per-variant totals. Daily counters read as zero once the stored day is stale.
func (s *Service) Counters(ctx context.Context, id snowflake.ID) (*userdomain.Counters, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}

	today := s.clock.Now().UTC().Format(userdomain.CounterDateLayout)
	return &userdomain.Counters{
		UserID: user.ID.String(),
		Scripted: userdomain.VariantCounters{
			Total:   user.TotalScripted,
			Today:   dailyCount(user.LastScriptedDate, today, user.DailyScripted),
			Deleted: user.DeletedScripted,
		},
		Freeform: userdomain.VariantCounters{
			Total:   user.TotalFreeform,
			Today:   dailyCount(user.LastFreeformDate, today, user.DailyFreeform),
			Deleted: user.DeletedFreeform,
		},
		TotalPaidAmount:     user.TotalPaidAmount,
		TotalPaidRecordings: user.TotalPaidRecordings,
	}, nil
}

func (s *Service) SetSuspended(ctx context.Context, id string, suspended bool) (*userdomain.Response, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return nil, err
	}

	changed, err := s.repo.UpdateSuspended(ctx, s.db, userID, suspended, s.clock.Now())
	if err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if changed > 0 {
		s.log.Info("user suspension changed",
			zap.String("user_id", userID.String()),
			zap.Bool("suspended", suspended),
		)
	}
	return toResponse(user), nil
}

func (s *Service) SetRole(ctx context.Context, id string, role userdomain.Role) (*userdomain.Response, error) {
	userID, err := parseUserID(id)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, userdomain.ErrInvalidRole
	}

	changed, err := s.repo.UpdateRole(ctx, s.db, userID, role, s.clock.Now())
	if err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if changed > 0 {
		s.log.Info("user role changed",
			zap.String("user_id", userID.String()),
			zap.String("role", string(role)),
		)
	}
	return toResponse(user), nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func parseUserID(value string) (snowflake.ID, error) {
	id, err := userdomain.ParseID(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, userdomain.ErrInvalidID
	}
	return id, nil
}

func dailyCount(lastDay, today string, count int64) int64 {
	if lastDay != today {
		return 0
	}
	return count
}

func normalizeEmail(value string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}

func toResponse(u *userdomain.User) *userdomain.Response {
	return &userdomain.Response{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		Suspended:   u.Suspended,
		CreatedAt:   u.CreatedAt,
	}
}
