package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/model"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)

	u, err := f.users.Register(f.ctx, NewUserInput{Name: "Ann", Email: " Ann@Example.com ", Password: "pw", Role: "superadmin"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, "ann@example.com", u.Email)

	got, err := f.users.Authenticate(f.ctx, "ANN@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.users.Authenticate(f.ctx, "ann@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
	_, err = f.users.Authenticate(f.ctx, "ghost@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Register(f.ctx, NewUserInput{Name: "Ann 2", Email: "ann@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailExists)
	_, err = f.users.Register(f.ctx, NewUserInput{Email: "x@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateRoleEscalation(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", model.RoleUser)

	_, err := f.users.Create(f.ctx, alice, NewUserInput{Name: "x", Email: "x@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.users.Create(f.ctx, f.admin, NewUserInput{Name: "y", Email: "y@example.com", Password: "pw", Role: "Admin"})
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := f.users.Create(f.ctx, f.admin, NewUserInput{Name: "z", Email: "z@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)

	a, err := f.users.CreateAdmin(f.ctx, f.super, NewUserInput{Name: "w", Email: "w@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, a.Role)

	_, err = f.users.CreateAdmin(f.ctx, f.admin, NewUserInput{Name: "v", Email: "v@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.users.Create(f.ctx, f.super, NewUserInput{Name: "q", Email: "q@example.com", Password: "pw", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListUsersAndAdmins(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", model.RoleUser)
	f.addUser(t, "bob", model.RoleUser)

	users, err := f.users.ListUsers(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)

	admins, err := f.users.ListAdmins(f.ctx, f.super)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, f.admin.UserID, admins[0].ID)

	_, err = f.users.ListUsers(f.ctx, alice)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.ListAdmins(f.ctx, authz.Anonymous)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", model.RoleUser)

	u, err := f.users.Update(f.ctx, f.admin, alice.UserID, EditUserInput{Name: ptr("Alice A."), Password: ptr("new-pw")})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", u.Name)
	_, err = f.users.Authenticate(f.ctx, "alice@example.com", "new-pw")
	require.NoError(t, err)

	_, err = f.users.Update(f.ctx, f.admin, alice.UserID, EditUserInput{Role: ptr("admin")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.Update(f.ctx, f.admin, f.super.UserID, EditUserInput{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	u, err = f.users.Update(f.ctx, f.super, alice.UserID, EditUserInput{Role: ptr("ADMIN")})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	_, err = f.users.Update(f.ctx, f.super, "missing", EditUserInput{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.users.Update(f.ctx, f.super, alice.UserID, EditUserInput{Email: ptr("ops@example.com")})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestDeleteUserUnassignsCodes(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", model.RoleUser)
	c := f.addCode(t, code1, alice.UserID, true)

	require.NoError(t, f.users.Delete(f.ctx, f.admin, alice.UserID))

	got, err := f.qr.Get(f.ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAssigned())

	assert.ErrorIs(t, f.users.Delete(f.ctx, f.admin, alice.UserID), ErrNotFound)
	// Admin accounts are not reachable through the user endpoints.
	assert.ErrorIs(t, f.users.Delete(f.ctx, f.super, f.admin.UserID), ErrNotFound)
}

func TestDeleteAdmin(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", model.RoleUser)

	assert.ErrorIs(t, f.users.DeleteAdmin(f.ctx, f.admin, f.admin.UserID), ErrForbidden)
	assert.ErrorIs(t, f.users.DeleteAdmin(f.ctx, f.super, alice.UserID), ErrNotFound)
	require.NoError(t, f.users.DeleteAdmin(f.ctx, f.super, f.admin.UserID))

	admins, err := f.users.ListAdmins(f.ctx, f.super)
	require.NoError(t, err)
	assert.Empty(t, admins)
}

func TestEnsureSuperAdmin(t *testing.T) {
	f := newFixture(t)

	created, err := f.users.EnsureSuperAdmin(f.ctx, "", "Boss@Example.com", "pw")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.users.EnsureSuperAdmin(f.ctx, "", "boss@example.com", "pw")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := f.users.Authenticate(f.ctx, "boss@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, u.Role)
	assert.Equal(t, "Super Admin", u.Name)

	_, err = f.users.EnsureSuperAdmin(f.ctx, "", "", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
