package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/password"
	identityrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/repository"
	identityservice "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/service"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/testutil"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	userrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/repository"
	userservice "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (identitydomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))
	svc := identityservice.New(identityservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    testutil.NewNode(t),
		Cfg:      config.Config{Auth: config.AuthConfig{SessionTTL: time.Hour}},
		Repo:     identityrepo.Provide(),
		UserRepo: userrepo.Provide(),
		Clock:    clk,
	})
	return svc, db, clk
}

func TestIssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, db, clk := newService(t)
	user := testutil.SeedUser(t, db, testutil.NewNode(t), "Ada Obi", userdomain.RoleAdmin)

	issued, err := svc.IssueSession(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, user.ID.String(), issued.UserID)
	assert.True(t, issued.ExpiresAt.Equal(clk.Now().Add(time.Hour)))

	subject, err := svc.Authenticate(ctx, "  "+issued.Token+" ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject.UserID)
	assert.Equal(t, "Ada Obi", subject.DisplayName)
	assert.True(t, subject.IsAdmin())

	var stored identitydomain.Session
	require.NoError(t, db.First(&stored).Error)
	assert.NotEqual(t, issued.Token, stored.TokenHash)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, identitydomain.ErrUnauthenticated)
	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, identitydomain.ErrInvalidSession)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc, db, clk := newService(t)
	user := testutil.SeedUser(t, db, testutil.NewNode(t), "Ada", "")

	issued, err := svc.IssueSession(ctx, user.ID)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = svc.Authenticate(ctx, issued.Token)
	assert.ErrorIs(t, err, identitydomain.ErrSessionExpired)
}

func TestAuthenticateRejectsSuspendedUser(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	user := testutil.SeedUser(t, db, testutil.NewNode(t), "Ada", "")

	issued, err := svc.IssueSession(ctx, user.ID)
	require.NoError(t, err)

	users := userservice.New(userservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Repo:  userrepo.Provide(),
	})
	_, err = users.SetSuspended(ctx, user.ID.String(), true)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, issued.Token)
	assert.ErrorIs(t, err, identitydomain.ErrUserSuspended)

	_, err = svc.IssueSession(ctx, user.ID)
	assert.ErrorIs(t, err, identitydomain.ErrUserSuspended)

	_, err = users.SetSuspended(ctx, user.ID.String(), false)
	require.NoError(t, err)
	subject, err := svc.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject.UserID)
}

func TestLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newService(t)
	user := testutil.SeedUser(t, db, testutil.NewNode(t), "Ada", "")

	hash, err := password.Hash("correct horse battery")
	require.NoError(t, err)
	require.NoError(t, db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", hash, user.ID).Error)

	_, err = svc.Login(ctx, identitydomain.LoginRequest{Email: user.Email, Password: "wrong password"})
	assert.ErrorIs(t, err, identitydomain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, identitydomain.LoginRequest{Email: "not an email", Password: "correct horse battery"})
	assert.ErrorIs(t, err, identitydomain.ErrInvalidCredentials)

	issued, err := svc.Login(ctx, identitydomain.LoginRequest{
		Email:    "Ada <" + user.Email + ">",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, issued.Token))
	_, err = svc.Authenticate(ctx, issued.Token)
	assert.ErrorIs(t, err, identitydomain.ErrSessionRevoked)

	assert.ErrorIs(t, svc.Logout(ctx, "missing"), identitydomain.ErrInvalidSession)
}
