// Package hashutil provides the one-way string hashes used to derive secrets and
// to fingerprint identities before they are used as cache keys.
package hashutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"hash"
)

func hashString(s string, h hash.Hash) string {
	h.Write([]byte(s))
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))
}

// HashString returns the SHA-256 of s as unpadded base64
func HashString(s string) string {
	return hashString(s, sha256.New())
}

// SHA1String returns the SHA-1 of s as unpadded base64.
// Only used for short cache keys, never for secrets.
func SHA1String(s string) string {
	return hashString(s, sha1.New())
}

// DeriveSecret derives a purpose-bound secret from the master secret
func DeriveSecret(purpose, master string) string {
	return HashString(purpose + master)
}
