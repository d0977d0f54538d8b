package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-tracker/internal/database"
	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/utils"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open("sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db, "sqlite3"))
	_, err = db.Exec("DELETE FROM refresh_tokens")
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM users")
	require.NoError(t, err)
	return db
}

func TestUserRepoCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(openTestDB(t))

	id, err := users.Create(ctx, "  Ana@Example.com ", "hunter22", model.RoleMember, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotZero(t, id)

	u, err := users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, model.RoleMember, u.Role)
	assert.True(t, u.IsActive)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "hunter22"))

	byID, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	_, err = users.GetByID(ctx, id+100)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepoDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(openTestDB(t))

	_, err := users.Create(ctx, "bo@example.com", "pw", model.RoleMember, bcrypt.MinCost)
	require.NoError(t, err)
	_, err = users.Create(ctx, "BO@example.com", "pw", model.RoleMember, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestTokenRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)

	uid, err := users.Create(ctx, "cy@example.com", "pw", model.RoleMember, bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, tokens.StoreRefresh(ctx, uid, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, uid, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, uid, "old", time.Now().Add(-time.Hour)))

	got, err := tokens.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	_, err = tokens.ValidateRefresh(ctx, "old")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = tokens.ValidateRefresh(ctx, "unknown")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, tokens.RevokeByHash(ctx, "h1"))
	_, err = tokens.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = tokens.ValidateRefresh(ctx, "h2")
	assert.NoError(t, err)

	require.NoError(t, tokens.RevokeAllForUser(ctx, uid))
	_, err = tokens.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
