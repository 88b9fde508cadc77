// Package auth validates API keys against stored accounts and scopes
// work to a user.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nickcecere/codemap/internal/store"
)

// ErrInvalidCredentials indicates the key does not match, the user is
// unknown, or the account is disabled. Callers get one error for all
// three so responses don't leak which part failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrPermissionDenied indicates the authenticated user lacks the
// permission an operation requires.
var ErrPermissionDenied = errors.New("permission denied")

// Permission names an allowed operation.
type Permission string

const (
	PermIngest Permission = "ingest"
	PermSearch Permission = "search"
)

// UserContext identifies an authenticated caller. It is the only
// identity passed into storage and ingestion paths.
type UserContext struct {
	UserID      int64
	Email       string
	Permissions []Permission
}

// Owner is the identity string recorded on projects this user owns.
// A nil context is the anonymous single-user mode and owns the empty
// identity.
func (u *UserContext) Owner() string {
	if u == nil {
		return ""
	}
	return u.Email
}

// Can reports whether the context carries a permission.
func (u *UserContext) Can(p Permission) bool {
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// HashKey returns the stored form of an API key.
func HashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// KeyAuthenticator validates API keys against the user table.
type KeyAuthenticator struct {
	store store.Store
}

// NewKeyAuthenticator creates an authenticator.
func NewKeyAuthenticator(st store.Store) *KeyAuthenticator {
	return &KeyAuthenticator{store: st}
}

// Authenticate checks an email and API key pair. The hash comparison
// is constant-time over the full length regardless of where a mismatch
// occurs.
func (a *KeyAuthenticator) Authenticate(email, apiKey string) (*UserContext, error) {
	user, err := a.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	supplied := []byte(HashKey(apiKey))
	stored := []byte(user.APIKeyHash)
	if len(supplied) != len(stored) || subtle.ConstantTimeCompare(supplied, stored) != 1 {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return &UserContext{
		UserID:      user.ID,
		Email:       user.Email,
		Permissions: []Permission{PermIngest, PermSearch},
	}, nil
}

// EnsureUser registers an account if the email is unused and returns
// it either way.
func (a *KeyAuthenticator) EnsureUser(email, apiKey string, storageQuota int64) (*store.User, error) {
	user, err := a.store.GetUserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	user, err = a.store.CreateUser(email, HashKey(apiKey), storageQuota)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}
