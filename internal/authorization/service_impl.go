package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, subject identitydomain.Subject, object string, action string) error {
	if subject.IsZero() {
		return ErrInvalidActor
	}
	if !subject.Role.Valid() {
		return ErrInvalidActor
	}
	return s.enforce(ctx, userActorPrefix+subject.UserID.String(), RoleFor(subject.Role), object, action)
}

func (s *ServiceImpl) AuthorizeSystem(ctx context.Context, object string, action string) error {
	return s.enforce(ctx, systemActor, roleSystem, object, action)
}

func (s *ServiceImpl) SyncRole(ctx context.Context, userID snowflake.ID, role userdomain.Role) error {
	if userID == 0 || !role.Valid() {
		return ErrInvalidActor
	}
	actor := userActorPrefix + userID.String()
	if err := s.ensureGrouping(actor, RoleFor(role)); err != nil {
		return err
	}
	s.log.Info("authorization.role_synced", zap.String("actor", actor), zap.String("role", string(role)))
	return nil
}

func (s *ServiceImpl) enforce(ctx context.Context, actor string, roleName string, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if err := s.ensureGrouping(actor, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization.denied",
			zap.String("actor", actor),
			zap.String("role", roleName),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per actor so role changes on the user row
// take effect on the next request.
func (s *ServiceImpl) ensureGrouping(actor string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, actor)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(actor, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(actor, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleAdmin, ObjectPrompt, ActionPromptImport},
		{roleAdmin, ObjectPrompt, ActionPromptStats},
		{roleAdmin, ObjectRecording, ActionRecordingList},
		{roleAdmin, ObjectRecording, ActionRecordingVerify},
		{roleAdmin, ObjectRecording, ActionRecordingDelete},
		{roleAdmin, ObjectPayment, ActionPaymentListEligible},
		{roleAdmin, ObjectPayment, ActionPaymentSettle},
		{roleAdmin, ObjectPayment, ActionPaymentUpdateStatus},
		{roleAdmin, ObjectUser, ActionUserSuspend},

		// Role changes stay with super-admins.
		{roleSuperAdmin, ObjectUser, ActionUserSetRole},

		// Scheduled payout sweep.
		{roleSystem, ObjectPayment, ActionPaymentListEligible},
		{roleSystem, ObjectPayment, ActionPaymentRequest},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// super-admin inherits every admin grant.
	if _, err := enforcer.AddGroupingPolicy(roleSuperAdmin, roleAdmin); err != nil {
		return err
	}
	return nil
}

// RoleFor is the casbin role a user role maps to.
func RoleFor(role userdomain.Role) string {
	return fmt.Sprintf("role:%s", strings.ToLower(string(role)))
}
