package tokenizer

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/twofa/codes"
	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/ports"
)

// CodeTokenizer implements the CodeTokenizer interface with HS256 JWTs
type CodeTokenizer struct {
	secret []byte
}

// NewCodeTokenizer creates a code tokenizer signing with the given secret.
// The secret must differ from the one protecting the final access tokens.
func NewCodeTokenizer(secret string) ports.CodeTokenizer {
	return &CodeTokenizer{secret: []byte(secret)}
}

// SignCodeToken converts a code token payload to a signed token
func (c *CodeTokenizer) SignCodeToken(payload *core.CodeTokenPayload) (string, error) {
	claims := CodeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		Username: payload.Username,
		CodeHash: payload.CodeHash,
		Nonce:    payload.Nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign code token: %w", err)
	}

	return signedToken, nil
}

// ParseCodeToken verifies the signature and shape of a code token.
// Time based claims are not validated here so that expiry is only judged
// after the signature is known to be good.
func (c *CodeTokenizer) ParseCodeToken(tokenStr string) (*core.CodeTokenPayload, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CodeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCodeTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CodeClaims)
	if !ok || !token.Valid {
		return nil, core.ErrCodeTokenInvalid
	}

	if err := validateShape(claims); err != nil {
		return nil, err
	}

	return &core.CodeTokenPayload{
		Username:  claims.Username,
		CodeHash:  claims.CodeHash,
		Nonce:     claims.Nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func validateShape(claims *CodeClaims) error {
	switch {
	case claims.Username == "":
		return fmt.Errorf("%w: missing usr", core.ErrCodeTokenInvalid)
	case !strings.HasPrefix(claims.CodeHash, codes.Algorithm+"$"):
		return fmt.Errorf("%w: malformed vch", core.ErrCodeTokenInvalid)
	case len(claims.Nonce) < codes.MinNonceLength || strings.Contains(claims.Nonce, "$"):
		return fmt.Errorf("%w: malformed vcn", core.ErrCodeTokenInvalid)
	case claims.IssuedAt == nil || claims.ExpiresAt == nil:
		return fmt.Errorf("%w: missing iat or exp", core.ErrCodeTokenInvalid)
	}
	return nil
}
