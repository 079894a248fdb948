// ABOUTME: Credential codec for API key secrets: random generation and one-way hashing
// ABOUTME: Raw secrets are shown once at issuance; only SHA-256 digests are stored

package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecretPrefix marks repgate API keys so they are recognizable in configs
// and secret scanners.
const SecretPrefix = "rg_"

// secretBytes is the entropy of a generated secret (256 bits).
const secretBytes = 32

// GenerateSecret produces a new high-entropy API key secret in URL-safe
// textual form. A failure of the randomness source is a configuration
// error, not something callers can recover from.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	return SecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret computes the SHA-256 hex digest of a secret. The digest is
// what the store indexes; raw secrets never reach the store.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// WellFormed reports whether a presented credential has the expected
// shape. Verification is still hash lookup; this only lets callers
// short-circuit obviously malformed input.
func WellFormed(secret string) bool {
	return strings.HasPrefix(secret, SecretPrefix) && len(secret) > len(SecretPrefix)
}

// ConstantTimeEqual compares two digests in constant time.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
