package links

import (
	"strings"
	"testing"
)

func TestCryptoTokenGeneratorGenerate(t *testing.T) {
	g := NewCryptoTokenGenerator()

	t.Run("correct length", func(t *testing.T) {
		token, err := g.Generate(8)
		if err != nil {
			t.Fatal(err)
		}
		if len(token) != 8 {
			t.Errorf("got length %d, want 8", len(token))
		}
	})

	t.Run("base62 alphabet only", func(t *testing.T) {
		token, err := g.Generate(200)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range token {
			if !strings.ContainsRune(tokenAlphabet, c) {
				t.Errorf("token contains non-base62 char: %q", c)
			}
		}
	})

	t.Run("non-positive length uses default", func(t *testing.T) {
		for _, length := range []int{0, -3} {
			token, err := g.Generate(length)
			if err != nil {
				t.Fatal(err)
			}
			if len(token) != DefaultTokenLength {
				t.Errorf("Generate(%d): got length %d, want %d", length, len(token), DefaultTokenLength)
			}
		}
	})

	t.Run("no duplicates over many calls", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			token, err := g.Generate(8)
			if err != nil {
				t.Fatal(err)
			}
			if _, exists := seen[token]; exists {
				t.Fatalf("duplicate token on iteration %d: %q", i, token)
			}
			seen[token] = struct{}{}
		}
	})
}
