package authorization

import (
	"context"
	"testing"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	identityrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/repository"
	identityservice "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/service"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/testutil"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	userrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/repository"
	userservice "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(testutil.OpenDB(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	node := testutil.NewNode(t)

	admin := identitydomain.Subject{UserID: node.Generate(), Role: userdomain.RoleAdmin}
	super := identitydomain.Subject{UserID: node.Generate(), Role: userdomain.RoleSuperAdmin}
	user := identitydomain.Subject{UserID: node.Generate(), Role: userdomain.RoleUser}

	assert.NoError(t, svc.Authorize(ctx, admin, ObjectRecording, ActionRecordingVerify))
	assert.NoError(t, svc.Authorize(ctx, super, ObjectPayment, ActionPaymentSettle))
	assert.ErrorIs(t, svc.Authorize(ctx, user, ObjectRecording, ActionRecordingVerify), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, ObjectPayment, ActionPaymentRequest), ErrForbidden)
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	id := testutil.NewNode(t).Generate()

	promoted := identitydomain.Subject{UserID: id, Role: userdomain.RoleAdmin}
	require.NoError(t, svc.Authorize(ctx, promoted, ObjectPrompt, ActionPromptImport))

	demoted := identitydomain.Subject{UserID: id, Role: userdomain.RoleUser}
	assert.ErrorIs(t, svc.Authorize(ctx, demoted, ObjectPrompt, ActionPromptImport), ErrForbidden)
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	admin := identitydomain.Subject{UserID: testutil.NewNode(t).Generate(), Role: userdomain.RoleAdmin}

	assert.ErrorIs(t, svc.Authorize(ctx, identitydomain.Subject{}, ObjectPrompt, ActionPromptStats), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, identitydomain.Subject{UserID: 7, Role: "owner"}, ObjectPrompt, ActionPromptStats), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, " ", ActionPromptStats), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, ObjectPrompt, ""), ErrInvalidAction)
}

func TestAuthorizeSystem(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	assert.NoError(t, svc.AuthorizeSystem(ctx, ObjectPayment, ActionPaymentRequest))
	assert.ErrorIs(t, svc.AuthorizeSystem(ctx, ObjectRecording, ActionRecordingDelete), ErrForbidden)
}

func TestRoleGrantsFollowUserRow(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	authz := NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
	users := userservice.New(userservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: userrepo.Provide()})
	identity := identityservice.New(identityservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Cfg:      config.Config{},
		Repo:     identityrepo.Provide(),
		UserRepo: userrepo.Provide(),
	})

	user := testutil.SeedUser(t, db, node, "Ada", userdomain.RoleUser)
	issued, err := identity.IssueSession(ctx, user.ID)
	require.NoError(t, err)

	subject, err := identity.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.ErrorIs(t, authz.Authorize(ctx, subject, ObjectRecording, ActionRecordingVerify), ErrForbidden)

	resp, err := users.SetRole(ctx, user.ID.String(), userdomain.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, authz.SyncRole(ctx, user.ID, resp.Role))

	roles, err := enforcer.GetRolesForUser(userActorPrefix + user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{roleAdmin}, roles)

	subject, err = identity.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, userdomain.RoleAdmin, subject.Role)
	assert.NoError(t, authz.Authorize(ctx, subject, ObjectRecording, ActionRecordingVerify))
	assert.ErrorIs(t, authz.Authorize(ctx, subject, ObjectUser, ActionUserSetRole), ErrForbidden)

	resp, err = users.SetRole(ctx, user.ID.String(), userdomain.RoleSuperAdmin)
	require.NoError(t, err)
	require.NoError(t, authz.SyncRole(ctx, user.ID, resp.Role))
	subject, err = identity.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.NoError(t, authz.Authorize(ctx, subject, ObjectUser, ActionUserSetRole))
	assert.NoError(t, authz.Authorize(ctx, subject, ObjectUser, ActionUserSuspend))
}

func TestSyncRoleRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	assert.ErrorIs(t, svc.SyncRole(ctx, 0, userdomain.RoleAdmin), ErrInvalidActor)
	assert.ErrorIs(t, svc.SyncRole(ctx, 7, "owner"), ErrInvalidActor)
}
