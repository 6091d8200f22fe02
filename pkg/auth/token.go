package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const DefaultTokenBytes = 32 // 256 bits

// GenerateSecureRandomToken returns n random bytes, hex encoded.
func GenerateSecureRandomToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken returns the hex SHA-256 digest of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenMatchesHash hashes candidate and compares it with storedHash in constant
// time. Both sides are fixed-length digests, so length never leaks.
func TokenMatchesHash(candidate, storedHash string) bool {
	if candidate == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(candidate)), []byte(storedHash)) == 1
}
