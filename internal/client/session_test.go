package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/internal/auth"
	"github.com/eventmgr/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueToken(t *testing.T, user types.User, ttl time.Duration) string {
	t.Helper()
	tokens := auth.NewTokenManager(config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  ttl,
		Issuer:    "eventmgr-test",
	})
	token, err := tokens.Issue(user)
	require.NoError(t, err)
	return token
}

func TestSessionStore_LoadWithoutFile(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	identity, token, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.Empty(t, token)
}

func TestSessionStore_SaveThenLoad(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	issued := issueToken(t, types.User{ID: 42, Name: "Ada", IsManager: true}, time.Hour)

	require.NoError(t, store.Save(issued))

	identity, token, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, 42, identity.UserID)
	assert.Equal(t, "Ada", identity.Name)
	assert.True(t, identity.IsManager)
	assert.Equal(t, issued, token)
}

func TestSessionStore_ExpiredTokenTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir)
	require.NoError(t, store.Save(issueToken(t, types.User{ID: 42, Name: "Ada"}, -time.Minute)))

	identity, token, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.Empty(t, token)

	// The stale token file is removed as a side effect.
	_, statErr := os.Stat(filepath.Join(dir, tokenFileName))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestSessionStore_MalformedTokenTreatedAsAbsent(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	require.NoError(t, store.Save("garbage"))

	identity, token, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.Empty(t, token)
}

func TestSessionStore_ClearIsIdempotent(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(issueToken(t, types.User{ID: 1, Name: "Ada"}, time.Hour)))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	identity, _, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, identity)
}
