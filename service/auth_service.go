package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/internal/metrics"
	"github.com/layer-3/twofa/ports"
	"github.com/rs/zerolog/log"
)

// AuthService handles the two-factor authentication flow
type AuthService struct {
	codeTokens      *CodeTokenManager
	accounts        ports.AccountStore
	tokenizer       ports.Tokenizer
	store           ports.Store
	eventPub        ports.EventPublisher
	requestThrottle ports.Throttle
	verifyThrottle  ports.Throttle

	metrics    *metrics.Metrics
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	codeTokens *CodeTokenManager,
	accounts ports.AccountStore,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	requestThrottle ports.Throttle,
	verifyThrottle ports.Throttle,
	opts ...Option,
) *AuthService {
	o := buildOptions(opts)

	return &AuthService{
		codeTokens:      codeTokens,
		accounts:        accounts,
		tokenizer:       tokenizer,
		store:           store,
		eventPub:        eventPub,
		requestThrottle: requestThrottle,
		verifyThrottle:  verifyThrottle,
		metrics:         o.metrics,
		now:             o.now,
		accessTTL:       o.accessTTL,
		refreshTTL:      o.refreshTTL,
	}
}

// AccessTTL returns the lifetime of issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// ObtainCodeToken checks the code request throttle for clientKey, then the
// first factor, and sends a verification code.
func (s *AuthService) ObtainCodeToken(ctx context.Context, clientKey, username, password string) (string, error) {
	if err := s.AllowCodeRequest(ctx, clientKey); err != nil {
		return "", err
	}

	return s.IssueCodeToken(ctx, username, password)
}

// AllowCodeRequest counts a code request of clientKey against the code request
// throttle. Transports call it before they look at the request body.
func (s *AuthService) AllowCodeRequest(ctx context.Context, clientKey string) error {
	return s.throttle(ctx, s.requestThrottle, "code_request", clientKey)
}

// IssueCodeToken checks the first factor and sends a verification code
// without consulting the code request throttle.
func (s *AuthService) IssueCodeToken(ctx context.Context, username, password string) (string, error) {
	account, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, core.ErrAuthenticationFailed) {
			return "", s.authFailure(ctx, "password", username, err)
		}
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}

	if !account.Active {
		return "", s.authFailure(ctx, "password", username, core.ErrAccountInactive)
	}

	token, err := s.codeTokens.CreateCodeToken(ctx, account)
	if err != nil {
		if errors.Is(err, core.ErrCodeDeliveryFailed) {
			s.metrics.DeliveryFailed()
			log.Ctx(ctx).Warn().Err(err).Str("username", username).Msg("verification code delivery failed")
		}
		return "", err
	}

	s.metrics.CodeIssued()
	log.Ctx(ctx).Info().Str("username", username).Msg("code token issued")

	return token, nil
}

// ObtainAuthToken checks the second factor and issues access and refresh tokens.
// Every failure of the code check maps to core.ErrAuthenticationFailed.
func (s *AuthService) ObtainAuthToken(ctx context.Context, codeToken, code string) (string, string, error) {
	if err := s.throttle(ctx, s.verifyThrottle, "code_verification", codeToken); err != nil {
		return "", "", err
	}

	username, err := s.codeTokens.CheckCodeTokenAndCode(ctx, codeToken, code)
	if err != nil {
		return "", "", s.authFailure(ctx, "code", username, err)
	}

	if _, err := s.activeAccount(ctx, "code", username); err != nil {
		return "", "", err
	}

	session := s.newSession(username)

	accessToken, refreshToken, err := s.sessionTokens(session)
	if err != nil {
		return "", "", err
	}

	s.metrics.LoggedIn()
	log.Ctx(ctx).Info().Str("username", username).Str("session_id", session.ID).Msg("two-factor login succeeded")

	if err := s.eventPub.PublishLogin(ctx, username, session.ID); err != nil {
		// the login itself succeeded
		log.Ctx(ctx).Warn().Err(err).Msg("failed to publish login event")
	}

	return accessToken, refreshToken, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	// Parse and validate the refresh token
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", err
	}

	if s.now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return "", "", fmt.Errorf("failed to check token invalidation: %w", err)
	}

	if invalidated {
		return "", "", core.ErrTokenInvalidated
	}

	// the account may have been disabled since the login
	if _, err := s.activeAccount(ctx, "refresh", session.Username); err != nil {
		return "", "", err
	}

	// Invalidate the old refresh token for the rest of its lifetime
	remainingTime := session.RefreshExpiry.Sub(s.now())
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.sessionTokens(s.newSession(session.Username))
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return err
	}

	remainingTime := session.RefreshExpiry.Sub(s.now())
	if remainingTime <= 0 {
		// keep expired tokens blocked for a while in case of clock drift
		remainingTime = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// Publish logout event for cross-instance notifications
	if err := s.eventPub.PublishLogout(ctx, session.Username, session.RefreshID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to publish logout event")
	}

	return nil
}

// ValidateAccessToken checks an access token and the refresh token it belongs to
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Access tokens die with the refresh token they were issued with
	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}

		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func (s *AuthService) throttle(ctx context.Context, t ports.Throttle, name, key string) error {
	if t == nil {
		return nil
	}

	allowed, retryAfter, err := t.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("%s throttle: %w", name, err)
	}

	if !allowed {
		s.metrics.ThrottledRequest(name)
		return &core.ThrottledError{RetryAfter: retryAfter}
	}

	return nil
}

func (s *AuthService) activeAccount(ctx context.Context, step, username string) (*core.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			return nil, s.authFailure(ctx, step, username, err)
		}
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	if !account.Active {
		return nil, s.authFailure(ctx, step, username, core.ErrAccountInactive)
	}

	return account, nil
}

// authFailure logs the internal reason and returns the generic error
func (s *AuthService) authFailure(ctx context.Context, step, username string, cause error) error {
	reason := failureReason(cause)
	s.metrics.AuthFailed(step, reason)
	log.Ctx(ctx).Warn().
		Str("step", step).
		Str("reason", reason).
		Str("username", username).
		Msg("authentication failed")

	return core.ErrAuthenticationFailed
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, core.ErrCodeTokenExpired):
		return "token_expired"
	case errors.Is(err, core.ErrCodeTokenInvalid):
		return "token_invalid"
	case errors.Is(err, core.ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, core.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, core.ErrAccountInactive):
		return "account_inactive"
	default:
		return "credentials"
	}
}

func (s *AuthService) newSession(username string) *core.Session {
	now := s.now()
	return &core.Session{
		ID:            uuid.New().String(),
		Username:      username,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}
}

func (s *AuthService) sessionTokens(session *core.Session) (string, string, error) {
	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}
