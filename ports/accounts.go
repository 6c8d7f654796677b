package ports

import (
	"context"

	"github.com/layer-3/twofa/core"
)

// AccountStore resolves accounts for both factors
type AccountStore interface {
	// Authenticate checks the first factor and returns the matching account.
	// It returns core.ErrAuthenticationFailed on unknown user or wrong password.
	Authenticate(ctx context.Context, username, password string) (*core.Account, error)

	// GetByUsername returns core.ErrAccountNotFound when no such account exists
	GetByUsername(ctx context.Context, username string) (*core.Account, error)
}

// CodeSender delivers a plaintext verification code to the account owner
type CodeSender interface {
	SendCode(ctx context.Context, account *core.Account, code string) error
}

// CodeSenderFunc adapts a plain function to CodeSender
type CodeSenderFunc func(ctx context.Context, account *core.Account, code string) error

func (f CodeSenderFunc) SendCode(ctx context.Context, account *core.Account, code string) error {
	return f(ctx, account, code)
}
