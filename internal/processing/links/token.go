package links

import (
	"crypto/rand"
)

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultTokenLength is the token size used when no explicit length is
// configured. At 8 base62 characters a collision is vanishingly unlikely at
// realistic table sizes, but the store still enforces uniqueness.
const DefaultTokenLength = 8

// CryptoTokenGenerator draws tokens from crypto/rand so they are unpredictable.
// It does not guarantee uniqueness against existing records; the repository's
// unique index does, and callers retry on ErrTokenTaken.
type CryptoTokenGenerator struct{}

func NewCryptoTokenGenerator() *CryptoTokenGenerator { return &CryptoTokenGenerator{} }

func (g *CryptoTokenGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultTokenLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, length)
	for i := range buf {
		out[i] = tokenAlphabet[int(buf[i])%len(tokenAlphabet)]
	}

	return string(out), nil
}
