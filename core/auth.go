package core

import "time"

// Account represents a user account as seen by the two-factor flow
type Account struct {
	Username string // Natural key of the account
	Email    string // Contact address for verification codes, may be empty
	Active   bool   // Inactive accounts can never authenticate
}

// CodeTokenPayload is the signed content of a code token
type CodeTokenPayload struct {
	Username  string    // Account the code was issued for
	CodeHash  string    // Salted hash of code + nonce + extension secret
	Nonce     string    // Random per-token value mixed into the hash
	IssuedAt  time.Time // When the token was created
	ExpiresAt time.Time // Token is invalid strictly after this instant
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	Username      string    // Account the session belongs to
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}
