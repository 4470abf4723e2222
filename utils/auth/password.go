package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordMismatch = errors.New("password does not match")
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12
	// MinPasswordLength is the minimum password length
	MinPasswordLength = 6
)

// Hasher is the one-way salted hash used for passwords and OTP codes
type Hasher interface {
	Hash(secret string) (string, error)
	// Compare returns ErrPasswordMismatch when secret does not match hash
	Compare(hash, secret string) error
}

// BcryptHasher implements Hasher with bcrypt (salted, constant-time compare)
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a hasher; a zero cost falls back to DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

// Hash generates a bcrypt hash of the secret
func (h *BcryptHasher) Hash(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// Compare checks if the provided secret matches the hash
func (h *BcryptHasher) Compare(hashed, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}

// PasswordPolicy accepts a password or returns the reasons it is rejected
type PasswordPolicy func(password string) []string

// DefaultPasswordPolicy requires MinPasswordLength characters with at least
// one uppercase letter, one lowercase letter and one digit
func DefaultPasswordPolicy(password string) []string {
	var problems []string

	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "Password must contain at least one number")
	}

	return problems
}
