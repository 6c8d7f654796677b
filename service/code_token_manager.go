package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/twofa/codes"
	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/ports"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCodeLifetime is how long a code token stays valid
	DefaultCodeLifetime = 5 * time.Minute

	nonceLength = codes.MinNonceLength
)

// CodeTokenConfig holds the settings of the code token protocol
type CodeTokenConfig struct {
	CodeLength      int
	CodeAlphabet    string
	Lifetime        time.Duration
	ExtensionSecret string
	HashIterations  int
}

// CodeTokenManager creates code tokens and checks codes presented against them.
// It keeps no state, every call depends only on the token and the config.
type CodeTokenManager struct {
	generator *codes.Generator
	hasher    *codes.Hasher
	tokenizer ports.CodeTokenizer
	sender    ports.CodeSender

	extension string
	lifetime  time.Duration
	now       func() time.Time
}

// NewCodeTokenManager validates cfg and creates a manager
func NewCodeTokenManager(
	cfg CodeTokenConfig,
	tokenizer ports.CodeTokenizer,
	sender ports.CodeSender,
	opts ...Option,
) (*CodeTokenManager, error) {
	generator, err := codes.NewGenerator(cfg.CodeLength, cfg.CodeAlphabet)
	if err != nil {
		return nil, err
	}
	if cfg.ExtensionSecret == "" {
		return nil, &core.ConfigError{Field: "CODE_EXTENSION_SECRET", Reason: "must not be empty"}
	}
	// iat and exp are whole seconds, so is the lifetime
	lifetime := cfg.Lifetime.Truncate(time.Second)
	if lifetime <= 0 {
		return nil, &core.ConfigError{Field: "CODE_EXPIRATION_TIME", Reason: "must be at least one second"}
	}
	if tokenizer == nil {
		return nil, &core.ConfigError{Field: "CODE_TOKEN_SECRET_KEY", Reason: "no code tokenizer"}
	}
	if sender == nil {
		return nil, &core.ConfigError{Field: "CODE_SENDER", Reason: "no code sender"}
	}

	o := buildOptions(opts)

	return &CodeTokenManager{
		generator: generator,
		hasher:    codes.NewHasher(cfg.HashIterations),
		tokenizer: tokenizer,
		sender:    sender,
		extension: cfg.ExtensionSecret,
		lifetime:  lifetime,
		now:       o.now,
	}, nil
}

// CreateCodeToken generates a verification code for account, sends it and
// returns a signed code token holding only the code's salted hash.
// If the code cannot be delivered a *core.CodeDeliveryError is returned and
// no token is produced.
func (m *CodeTokenManager) CreateCodeToken(ctx context.Context, account *core.Account) (string, error) {
	code, err := m.generator.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	payload, err := m.payload(account.Username, code)
	if err != nil {
		return "", err
	}

	if err := m.sender.SendCode(ctx, account, code); err != nil {
		return "", &core.CodeDeliveryError{Reason: err}
	}

	token, err := m.tokenizer.SignCodeToken(payload)
	if err != nil {
		return "", fmt.Errorf("failed to create code token: %w", err)
	}

	return token, nil
}

// CheckCodeTokenAndCode verifies the token and the code and returns the
// username the token was issued for. Failures are one of
// core.ErrCodeTokenInvalid, core.ErrCodeTokenExpired or core.ErrCodeMismatch.
func (m *CodeTokenManager) CheckCodeTokenAndCode(ctx context.Context, token, code string) (string, error) {
	payload, err := m.tokenizer.ParseCodeToken(token)
	if err != nil {
		if !errors.Is(err, core.ErrCodeTokenInvalid) {
			err = fmt.Errorf("%w: %v", core.ErrCodeTokenInvalid, err)
		}
		return "", err
	}

	now := m.now().Unix()
	if payload.IssuedAt.Unix() > now {
		return "", fmt.Errorf("%w: issued in the future", core.ErrCodeTokenInvalid)
	}
	if now > payload.ExpiresAt.Unix() {
		return "", core.ErrCodeTokenExpired
	}

	if !m.hasher.Verify(code, payload.Nonce, m.extension, payload.CodeHash) {
		return "", core.ErrCodeMismatch
	}

	log.Ctx(ctx).Debug().Str("username", payload.Username).Msg("verification code accepted")

	return payload.Username, nil
}

func (m *CodeTokenManager) payload(username, code string) (*core.CodeTokenPayload, error) {
	nonce, err := codes.RandomString(nonceLength, codes.NonceAlphabet)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	codeHash, err := m.hasher.Hash(code, nonce, m.extension)
	if err != nil {
		return nil, fmt.Errorf("failed to hash verification code: %w", err)
	}

	now := m.now().Truncate(time.Second)
	return &core.CodeTokenPayload{
		Username:  username,
		CodeHash:  codeHash,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.lifetime),
	}, nil
}
