package relay

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenLength is the number of hex characters kept from the URL digest.
const TokenLength = 10

// NewToken derives the token for url. The same string always yields the same
// token; no normalisation is applied, so "http://a/x" and "http://a/x?" differ.
func NewToken(url string) Token {
	sum := sha256.Sum256([]byte(url))
	return Token(hex.EncodeToString(sum[:])[:TokenLength])
}
