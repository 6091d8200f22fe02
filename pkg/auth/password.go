package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	BcryptCost        = 14 // OWASP 2026 recommendation - stronger than cost 12 (Feb 2026)
	MinPasswordLen    = 8
	StrongPasswordLen = 12
	MinValidScore     = 4

	PBKDF2Iterations = 100000
	PBKDF2KeyLength  = 64
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// PasswordStrength is the result of ValidatePasswordStrength.
type PasswordStrength struct {
	Valid    bool     `json:"valid"`
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// ValidatePasswordStrength scores a password from 0 to 6 and lists a hint for
// every unmet criterion. A score of 4 or more is valid.
func ValidatePasswordStrength(password string) PasswordStrength {
	feedback := make([]string, 0)
	score := 0
	length := utf8.RuneCountInString(password)

	if length >= MinPasswordLen {
		score++
	} else {
		feedback = append(feedback, fmt.Sprintf("Password must be at least %d characters", MinPasswordLen))
	}

	if length >= StrongPasswordLen {
		score++
	} else if length >= MinPasswordLen {
		feedback = append(feedback, "Longer passwords are stronger")
	}

	hasLower, hasUpper, hasDigit := false, false, false
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}

	if hasLower {
		score++
	} else {
		feedback = append(feedback, "Add lowercase letters")
	}
	if hasUpper {
		score++
	} else {
		feedback = append(feedback, "Add uppercase letters")
	}
	if hasDigit {
		score++
	} else {
		feedback = append(feedback, "Add numbers")
	}
	if strings.ContainsAny(password, specialChars) {
		score++
	} else {
		feedback = append(feedback, "Add special characters for extra security")
	}

	return PasswordStrength{
		Valid:    score >= MinValidScore,
		Score:    score,
		Feedback: feedback,
	}
}

// DerivePasswordHash is PBKDF2-SHA256 with 100000 iterations and a 64-byte key, hex encoded.
func DerivePasswordHash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), PBKDF2Iterations, PBKDF2KeyLength, sha256.New)
	return hex.EncodeToString(key)
}

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, BcryptCost)
}

// HashPasswordWithCost lets tests trade hash strength for speed.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
