package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTokenExpired is returned for an access or refresh token past its expiry
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalidated is returned for a token whose session was logged out or refreshed
	ErrTokenInvalidated = errors.New("token has been invalidated")
	// ErrInvalidToken is returned for a token that does not parse or verify
	ErrInvalidToken = errors.New("invalid token")

	// Code token check outcomes. They stay distinct inside the service and are
	// collapsed into ErrAuthenticationFailed before reaching a requester.
	ErrCodeTokenInvalid = errors.New("code token is invalid")
	ErrCodeTokenExpired = errors.New("code token has expired")
	ErrCodeMismatch     = errors.New("verification code mismatch")

	// ErrAuthenticationFailed is the only authentication error a requester sees
	ErrAuthenticationFailed = errors.New("incorrect authentication credentials")
	// ErrAccountNotFound is returned by account stores for unknown usernames
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountInactive marks an account that may not log in
	ErrAccountInactive = errors.New("account is inactive")
	// ErrCodeDeliveryFailed matches every CodeDeliveryError
	ErrCodeDeliveryFailed = errors.New("verification code sending failed")
	// ErrThrottled matches every ThrottledError
	ErrThrottled = errors.New("request was throttled")
	// ErrInvalidConfig matches every ConfigError
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CodeDeliveryError is returned when the verification code could not be sent.
// No code token is handed out in that case.
type CodeDeliveryError struct {
	Reason error
}

func (e *CodeDeliveryError) Error() string {
	return fmt.Sprintf("verification code sending failed: %v", e.Reason)
}

func (e *CodeDeliveryError) Unwrap() error { return e.Reason }

func (e *CodeDeliveryError) Is(target error) bool { return target == ErrCodeDeliveryFailed }

// ThrottledError carries how long the caller has to wait before retrying
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("request was throttled, retry after %s", e.RetryAfter)
}

func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }

// ConfigError reports a setting that makes the service unable to start
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }
