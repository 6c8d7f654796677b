package tokenizer

import "github.com/golang-jwt/jwt/v5"

// CodeClaims is the payload of a code token. Only iat and exp of the
// registered claims are set, so the encoded payload is exactly
// {usr, vch, vcn, iat, exp}.
type CodeClaims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	CodeHash string `json:"vch"` // Verification Code Hash
	Nonce    string `json:"vcn"` // Verification Code Nonce
}

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"` // ID of the refresh token
}

// RefreshClaims are just the standard claims for refresh tokens
type RefreshClaims struct {
	jwt.RegisteredClaims
}
