// Package client is the Go API client for the event manager. It keeps a
// locally persisted session so the UI can gate routes without a network
// round trip on startup.
package client

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/eventmgr/apiserver/internal/auth"
)

// tokenFileName is the single well-known slot for the persisted token.
const tokenFileName = "token"

// Identity is the minimal identity decoded from a stored token. It is
// derived from signed claims without verification and is trusted for UI
// gating only; the server re-verifies every privileged operation.
type Identity struct {
	UserID    int
	IsManager bool
	Name      string
}

// SessionStore persists the raw token across runs.
type SessionStore struct {
	path string
}

// NewSessionStore keeps the token under the given directory.
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{path: filepath.Join(dir, tokenFileName)}
}

// Load returns the stored identity, or nil when logged out. A token
// whose embedded expiry has passed is treated as absent and removed.
func (s *SessionStore) Load() (*Identity, string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", err
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return nil, "", nil
	}

	claims, err := auth.DecodeUnverified(token)
	if err != nil {
		// Expired or malformed tokens are equivalent to logged-out.
		_ = s.Clear()
		return nil, "", nil
	}

	return &Identity{
		UserID:    claims.UserID,
		IsManager: claims.IsManager,
		Name:      claims.Name,
	}, token, nil
}

// Save replaces the stored token.
func (s *SessionStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token), 0o600)
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *SessionStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
