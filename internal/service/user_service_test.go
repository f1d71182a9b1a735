package service

import (
	"context"
	"testing"

	"homechat/internal/model"
	apperrors "homechat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signup(t *testing.T, e *testEnv, username string) *model.User {
	t.Helper()
	u, token, err := e.users.Signup(context.Background(), SignupInput{Username: username, Password: "secret123", PasswordConfirmation: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return u
}

func TestSignup_FirstUserBecomesAdmin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// 系统用户先于任何注册存在，不影响首个管理员
	_, err := e.system.Get(ctx)
	require.NoError(t, err)

	first := signup(t, e, "alice")
	second := signup(t, e, "bob")
	assert.Equal(t, model.RoleAdmin, first.Role)
	assert.Equal(t, model.RoleUser, second.Role)
}

func TestSignup_JoinsHomeChannel(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := signup(t, e, "alice")

	home, err := e.channelsRepo.GetByName(ctx, HomeChannel)
	require.NoError(t, err)
	member, err := e.membersRepo.Exists(ctx, home.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestSignup_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    SignupInput
		field string
	}{
		{"short username", SignupInput{Username: "al", Password: "secret123"}, "username"},
		{"blank password", SignupInput{Username: "alice"}, "password"},
		{"mismatch", SignupInput{Username: "alice", Password: "secret123", PasswordConfirmation: "other"}, "password_confirmation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.users.Signup(ctx, tt.in)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestSignup_DuplicateAndDisabled(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	signup(t, e, "alice")

	_, _, err := e.users.Signup(ctx, SignupInput{Username: "alice", Password: "secret123"})
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)

	require.NoError(t, e.settings.Set(ctx, model.SettingAllowSignups, "false"))
	_, _, err = e.users.Signup(ctx, SignupInput{Username: "bob", Password: "secret123"})
	assert.ErrorIs(t, err, apperrors.ErrSignupsDisabled)
}

func TestSignin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := signup(t, e, "alice")

	u, token, err := e.users.Signin(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	claims, err := e.jwt.ValidateToken(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id)

	_, _, err = e.users.Signin(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidLogin)
	_, _, err = e.users.Signin(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidLogin)
}

func TestSignout_MarksOffline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := signup(t, e, "alice")
	require.NoError(t, e.presence.MarkOnline(ctx, alice.ID))

	require.NoError(t, e.users.Signout(ctx, alice.ID))
	u, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
}

func TestUserService_Admin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := signup(t, e, "alice")
	bob := signup(t, e, "bob")

	u, err := e.users.SetRole(ctx, bob.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	_, err = e.users.SetRole(ctx, bob.ID, "owner")
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	system, err := e.system.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(e.users.Delete(ctx, system.ID)))

	require.NoError(t, e.users.Delete(ctx, alice.ID))
	_, err = e.users.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUpdatePushToken(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := signup(t, e, "alice")

	require.NoError(t, e.users.UpdatePushToken(ctx, alice.ID, " device-1 "))
	u, err := e.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "device-1", u.PushToken)

	err = e.users.UpdatePushToken(ctx, alice.ID, "")
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

func TestBootstrap_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.user(t, "alice", model.RoleAdmin)

	require.NoError(t, e.bootstrap.Run(ctx))
	require.NoError(t, e.bootstrap.Run(ctx))

	home, err := e.channelsRepo.GetByName(ctx, HomeChannel)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, home.CreatedByID)

	n, err := e.usersRepo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	system, err := e.usersRepo.GetByUsername(ctx, SystemUsername)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, system.Role)
}

func TestBootstrap_WithoutAdminUsesSystemUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.bootstrap.Run(ctx))

	system, err := e.system.Get(ctx)
	require.NoError(t, err)
	home, err := e.channelsRepo.GetByName(ctx, HomeChannel)
	require.NoError(t, err)
	assert.Equal(t, system.ID, home.CreatedByID)
}
