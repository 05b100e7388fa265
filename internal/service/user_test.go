package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestUserService_ListRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	member := env.member(t, "member@example.com")

	users, err := env.users.ListUsers(ctx, root)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, root.ID, users[0].ID)

	_, err = env.users.ListUsers(ctx, member)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestUserService_ApprovePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	pending := env.addUser(t, "pending@example.com", domain.RoleMember, domain.UserStatusPending)
	env.member(t, "active@example.com")

	list, err := env.users.ListPendingUsers(ctx, root)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	approved, err := env.users.ApproveUser(ctx, root, pending.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsActive())
	assert.Equal(t, root.ID, approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	_, err = env.users.ApproveUser(ctx, root, pending.ID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "pending@example.com", Password: testPassword, DeviceInfo: webDevice()})
	assert.NoError(t, err)
}

func TestUserService_DenyPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	pending := env.addUser(t, "pending@example.com", domain.RoleMember, domain.UserStatusPending)

	require.NoError(t, env.users.DenyUser(ctx, root, pending.ID))
	_, err := env.store.GetUser(ctx, pending.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserService_UpdateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	member := env.member(t, "member@example.com")

	updated, err := env.users.UpdateUser(ctx, root, member.ID, UpdateUserRequest{
		DisplayName: ptr("  Ada  "),
		Role:        ptr(domain.RoleAdmin),
		Permissions: &domain.UserPermissions{CanDownload: false, CanUpload: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.DisplayName)
	assert.True(t, updated.IsAdmin())
	assert.True(t, updated.CanUpload())
	assert.False(t, updated.Permissions.CanDownload)

	_, err = env.users.UpdateUser(ctx, root, member.ID, UpdateUserRequest{Role: ptr(domain.Role("owner"))})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.users.UpdateUser(ctx, updated, root.ID, UpdateUserRequest{Role: ptr(domain.RoleMember)})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden, "root role is fixed")
}

func TestUserService_LastAdminCannotBeDemoted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	admin := env.addUser(t, "admin@example.com", domain.RoleAdmin, domain.UserStatusActive)

	// root still counts as an admin, so demoting the second admin works.
	_, err := env.users.UpdateUser(ctx, root, admin.ID, UpdateUserRequest{Role: ptr(domain.RoleMember)})
	require.NoError(t, err)

	// Pretend root is gone from the admin set to hit the guard.
	other := env.addUser(t, "solo@example.com", domain.RoleAdmin, domain.UserStatusActive)
	root.Role = domain.RoleMember
	root.IsRoot = false
	require.NoError(t, env.store.UpdateUser(ctx, root))

	_, err = env.users.UpdateUser(ctx, other, other.ID, UpdateUserRequest{Role: ptr(domain.RoleMember)})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestUserService_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.setupRoot(t)
	member := env.member(t, "member@example.com")

	_, err := env.sessions.CreateSession(ctx, member, webDevice(), "")
	require.NoError(t, err)
	require.NoError(t, env.store.SaveProgress(ctx, &domain.ReadingProgress{UserID: member.ID, BookID: "book-x", CurrentPage: 3, TotalPages: 10}))

	assert.ErrorIs(t, env.users.DeleteUser(ctx, root, root.ID), domainerrors.ErrForbidden)
	assert.ErrorIs(t, env.users.DeleteUser(ctx, member, root.ID), domainerrors.ErrForbidden)

	require.NoError(t, env.users.DeleteUser(ctx, root, member.ID))

	_, err = env.store.GetUser(ctx, member.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	sessions, err := env.store.ListUserSessions(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	progress, err := env.store.ListUserProgress(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, progress)

	assert.ErrorIs(t, env.users.DeleteUser(ctx, root, member.ID), domainerrors.ErrNotFound)
}

func TestUserService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := env.member(t, "member@example.com")

	updated, err := env.users.UpdateProfile(ctx, member, UpdateProfileRequest{DisplayName: ptr("Reader One")})
	require.NoError(t, err)
	assert.Equal(t, "Reader One", updated.DisplayName)

	stored, err := env.users.GetUser(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reader One", stored.DisplayName)
}
