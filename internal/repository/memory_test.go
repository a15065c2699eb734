package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addwise/addwise-hub/internal/model"
)

func TestMemoryStoreCodes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := "u1"
	require.NoError(t, s.Users.Create(ctx, &model.User{ID: owner, Name: "Ann", Email: "ann@example.com", Role: model.RoleUser}))

	require.NoError(t, s.QRCodes.CreateBatch(ctx, []*model.QRCode{
		{ID: "a", Value: "1000000000000001", IsActive: true, CreatedBy: &owner, CreatedAt: createdAt},
		{ID: "b", Value: "1000000000000002", IsActive: false, CreatedBy: &owner, CreatedAt: createdAt.Add(time.Second)},
	}))
	err := s.QRCodes.CreateBatch(ctx, []*model.QRCode{
		{ID: "c", Value: "1000000000000003"},
		{ID: "d", Value: "1000000000000003"},
	})
	assert.ErrorIs(t, err, ErrDuplicateValue)
	ok, _ := s.QRCodes.ValueExists(ctx, "1000000000000003")
	assert.False(t, ok, "failed batch must not leave rows behind")

	mine, err := s.QRCodes.ListForOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Ann", mine[0].Owner.Name)

	_, err = s.QRCodes.Mutate(ctx, Lookup{ID: "b", ActiveOnly: true}, func(*model.QRCode) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	ghost := "ghost"
	_, err = s.QRCodes.Update(ctx, "a", QRUpdate{SetOwner: true, Owner: &ghost})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.QRCodes.CreateBatch(ctx, []*model.QRCode{{ID: "e", Value: "1000000000000005", IsActive: true}}))
	_, err = s.QRCodes.Mutate(ctx, Lookup{ID: "e"}, func(q *model.QRCode) error {
		q.CreatedBy = &ghost
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	e, err := s.QRCodes.GetByID(ctx, "e")
	require.NoError(t, err)
	assert.False(t, e.IsAssigned())

	require.NoError(t, s.Users.Delete(ctx, owner))
	got, err := s.QRCodes.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got.IsAssigned())
	assert.Nil(t, got.Owner)

	n, err := s.QRCodes.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestMemoryStoreTokens(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Tokens.StoreRefresh(ctx, "u1", "h1", time.Now().Add(time.Hour)))
	require.NoError(t, s.Tokens.StoreRefresh(ctx, "u1", "h2", time.Now().Add(-time.Hour)))

	uid, err := s.Tokens.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	_, err = s.Tokens.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Tokens.StoreRefresh(ctx, "u1", "h3", time.Now().Add(time.Hour)))
	require.NoError(t, s.Tokens.RevokeByHash(ctx, "h3"))
	assert.ErrorIs(t, s.Tokens.RevokeByHash(ctx, "h3"), ErrNotFound)
	assert.ErrorIs(t, s.Tokens.RevokeByHash(ctx, "missing"), ErrNotFound)

	require.NoError(t, s.Tokens.RevokeAllForUser(ctx, "u1"))
	_, err = s.Tokens.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}
