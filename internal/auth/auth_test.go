package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/codemap/internal/store"
)

func newAuth(t *testing.T) *KeyAuthenticator {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), 32)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewKeyAuthenticator(st)
}

func TestAuthenticate(t *testing.T) {
	a := newAuth(t)
	_, err := a.EnsureUser("dev@example.com", "secret-key", 1<<30)
	require.NoError(t, err)

	uc, err := a.Authenticate("dev@example.com", "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", uc.Email)
	assert.True(t, uc.Can(PermIngest))
	assert.True(t, uc.Can(PermSearch))
}

func TestAuthenticateWrongKey(t *testing.T) {
	a := newAuth(t)
	_, err := a.EnsureUser("dev@example.com", "secret-key", 0)
	require.NoError(t, err)

	_, err = a.Authenticate("dev@example.com", "wrong-key")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	a := newAuth(t)
	_, err := a.Authenticate("nobody@example.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	a := newAuth(t)
	_, err := a.EnsureUser("dev@example.com", "secret-key", 0)
	require.NoError(t, err)
	require.NoError(t, a.store.SetUserActive("dev@example.com", false))

	_, err = a.Authenticate("dev@example.com", "secret-key")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureUserIdempotent(t *testing.T) {
	a := newAuth(t)
	u1, err := a.EnsureUser("dev@example.com", "secret-key", 0)
	require.NoError(t, err)
	u2, err := a.EnsureUser("dev@example.com", "other-key", 0)
	require.NoError(t, err)

	// Existing account wins; the second key is not applied.
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, u1.APIKeyHash, u2.APIKeyHash)
}

func TestHashKeyStable(t *testing.T) {
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
	assert.Len(t, HashKey("abc"), 64)
}
