package accounts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/layer-3/twofa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func cheapHash(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestMemoryAccountStore_Authenticate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAccountStore()
	require.NoError(t, s.Add("alice", "alice@example.com", cheapHash(t, "secret"), true))

	account, err := s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, &core.Account{Username: "alice", Email: "alice@example.com", Active: true}, account)

	_, err = s.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, core.ErrAuthenticationFailed)

	_, err = s.Authenticate(ctx, "mallory", "secret")
	assert.ErrorIs(t, err, core.ErrAuthenticationFailed)
}

func TestMemoryAccountStore_GetByUsername(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAccountStore()
	require.NoError(t, s.Add("alice", "", cheapHash(t, "secret"), true))

	account, err := s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, account.Email)

	// callers get copies
	account.Active = false
	again, err := s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, again.Active)

	require.NoError(t, s.SetActive("alice", false))
	again, err = s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.Active)

	_, err = s.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
	assert.ErrorIs(t, s.SetActive("bob", true), core.ErrAccountNotFound)
}

func TestMemoryAccountStore_AddRejectsPlaintext(t *testing.T) {
	s := NewMemoryAccountStore()
	assert.Error(t, s.Add("alice", "alice@example.com", "secret", true))
	assert.Error(t, s.Add("", "alice@example.com", cheapHash(t, "secret"), true))
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	content := `[
		{"username": "alice", "email": "alice@example.com", "password_hash": "` + cheapHash(t, "secret") + `"},
		{"username": "carol", "email": "carol@example.com", "password_hash": "` + cheapHash(t, "pw") + `", "active": false}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)

	alice, err := s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.True(t, alice.Active)

	carol, err := s.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, carol.Active)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"username":`), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("secret")))
}
