package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/ports"
	"golang.org/x/crypto/bcrypt"
)

// hash compared against when the username is unknown, so both paths cost one bcrypt run
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("twofa-dummy-password"), bcrypt.DefaultCost)

// AccountRecord is one entry of an accounts file
type AccountRecord struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Active       *bool  `json:"active,omitempty"`
}

type entry struct {
	account      core.Account
	passwordHash []byte
}

// MemoryAccountStore implements the AccountStore interface over an in-memory map
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]entry
}

var _ ports.AccountStore = (*MemoryAccountStore)(nil)

// NewMemoryAccountStore creates an empty account store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]entry)}
}

// LoadFile creates an account store from a JSON array of AccountRecord.
// Accounts without an "active" field are active.
func LoadFile(path string) (*MemoryAccountStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var records []AccountRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}

	s := NewMemoryAccountStore()
	for _, r := range records {
		active := r.Active == nil || *r.Active
		if err := s.Add(r.Username, r.Email, r.PasswordHash, active); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// HashPassword returns the bcrypt hash stored in accounts files
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashed), nil
}

// Add stores or replaces an account. passwordHash must be a bcrypt hash.
func (s *MemoryAccountStore) Add(username, email, passwordHash string, active bool) error {
	if username == "" {
		return fmt.Errorf("account without username")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("account %q: invalid password hash: %w", username, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[username] = entry{
		account:      core.Account{Username: username, Email: email, Active: active},
		passwordHash: []byte(passwordHash),
	}
	return nil
}

// SetActive enables or disables an account
func (s *MemoryAccountStore) SetActive(username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.accounts[username]
	if !ok {
		return core.ErrAccountNotFound
	}
	e.account.Active = active
	s.accounts[username] = e
	return nil
}

// Authenticate checks the password of username
func (s *MemoryAccountStore) Authenticate(ctx context.Context, username, password string) (*core.Account, error) {
	s.mu.RLock()
	e, ok := s.accounts[username]
	s.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, core.ErrAuthenticationFailed
	}

	if err := bcrypt.CompareHashAndPassword(e.passwordHash, []byte(password)); err != nil {
		return nil, core.ErrAuthenticationFailed
	}

	account := e.account
	return &account, nil
}

// GetByUsername returns a copy of the account
func (s *MemoryAccountStore) GetByUsername(ctx context.Context, username string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.accounts[username]
	if !ok {
		return nil, core.ErrAccountNotFound
	}

	account := e.account
	return &account, nil
}
