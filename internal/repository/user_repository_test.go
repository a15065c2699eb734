package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addwise/addwise-hub/internal/model"
)

var userCols = []string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	err = NewUserRepo(db).Create(context.Background(), &model.User{ID: "u1", Email: "a@example.com", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserLookups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "Ann", "ann@example.com", "h", "user", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = ? ORDER BY name, id")).WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("a1", "Ann", "a1@example.com", "h", "admin", now, now).
			AddRow("a2", "Bob", "a2@example.com", "h", "admin", now, now))

	repo := NewUserRepo(db)
	u, err := repo.GetByEmail(context.Background(), " Ann@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	admins, err := repo.ListByRole(context.Background(), "ADMIN")
	require.NoError(t, err)
	assert.Len(t, admins, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = ?, email = ?, role = ?, password_hash = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewUserRepo(db)
	assert.ErrorIs(t, repo.Update(context.Background(), &model.User{ID: "gone"}), ErrNotFound)
	require.NoError(t, repo.Delete(context.Background(), "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	cols := []string{"user_id", "expires_at", "revoked_at"}
	future := time.Now().UTC().Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("ok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", future, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", future, time.Now().UTC()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", time.Now().UTC().Add(-time.Minute), nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewTokenRepo(db)
	uid, err := repo.ValidateRefresh(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	for _, h := range []string{"revoked", "expired", "unknown"} {
		_, err := repo.ValidateRefresh(context.Background(), h)
		assert.ErrorIs(t, err, ErrNotFound, h)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeByHashIsSingleUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL")
	mock.ExpectExec(q).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTokenRepo(db)
	require.NoError(t, repo.RevokeByHash(context.Background(), "h1"))
	assert.ErrorIs(t, repo.RevokeByHash(context.Background(), "h1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
