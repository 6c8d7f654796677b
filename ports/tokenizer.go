package ports

import "github.com/layer-3/twofa/core"

// Tokenizer converts between sessions and the final access/refresh tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}

// CodeTokenizer signs and parses code tokens.
// ParseCodeToken only checks signature and shape, expiry is left to the caller.
type CodeTokenizer interface {
	SignCodeToken(payload *core.CodeTokenPayload) (string, error)
	ParseCodeToken(token string) (*core.CodeTokenPayload, error)
}
