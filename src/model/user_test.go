package model

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB) *User {
	t.Helper()
	u := &User{Username: "trader", Email: " Trader@Example.com ", Password: "hash"}
	require.NoError(t, u.CreateUser(db))
	return u
}

func TestCreateAndLookupUser(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "trader@example.com", u.Email)

	byEmail, err := GetUserByEmail(db, "TRADER@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, AuthProviderLocal, byEmail.AuthProvider)
	assert.False(t, byEmail.LastLoginAt.Valid)

	byName, err := GetUserByUsername(db, "trader")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = GetUserByID(db, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPasswordResetTokenExpiry(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db)

	require.NoError(t, u.SetPasswordResetToken(db, "expired", time.Now().Add(-time.Minute)))
	_, err := GetUserByPasswordResetToken(db, "expired")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, u.SetPasswordResetToken(db, "live", time.Now().Add(time.Hour)))
	found, err := GetUserByPasswordResetToken(db, "live")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	require.NoError(t, found.UpdatePassword(db, "new-hash"))
	_, err = GetUserByPasswordResetToken(db, "live")
	assert.ErrorIs(t, err, ErrUserNotFound, "token is cleared with the password change")
}

func TestVerificationAndMfa(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db)

	require.NoError(t, u.UpdateUserVerificationToken(db, "verify-me", time.Now().Add(time.Hour)))
	found, err := GetUserByVerificationToken(db, "verify-me")
	require.NoError(t, err)
	require.NoError(t, found.UpdateUserVerificationStatus(db, true))

	require.NoError(t, found.UpdateMfaSecret(db, "SECRET"))
	require.NoError(t, found.UpdateMfaEnabled(db, true))
	require.NoError(t, found.RecordLogin(db, "10.0.0.1"))

	reloaded, err := GetUserByID(db, u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsEmailVerified)
	assert.Empty(t, reloaded.EmailVerificationToken)
	assert.Equal(t, "SECRET", reloaded.MfaSecret)
	assert.True(t, reloaded.MfaEnabled)
	assert.Equal(t, 1, reloaded.LoginCount)
	assert.Equal(t, "10.0.0.1", reloaded.LastLoginIP)
	assert.True(t, reloaded.LastLoginAt.Valid)
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db)

	live := &Session{UserID: u.ID, Token: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, CreateSession(db, live))
	expired := &Session{UserID: u.ID, Token: "a2", RefreshToken: "r2", ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, CreateSession(db, expired))

	s, err := GetSessionByToken(db, "a1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.UserID)

	_, err = GetSessionByRefreshToken(db, "r2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := DeleteSessionsByUserID(db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = GetSessionByToken(db, "a1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db)
	require.NoError(t, CreateSession(db, &Session{UserID: u.ID, Token: "t", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, DeleteUser(db, u.ID))
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Zero(t, count)

	assert.ErrorIs(t, DeleteUser(db, u.ID), ErrUserNotFound)
}
