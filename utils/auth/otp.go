package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPDigits is the fixed length of verification codes
const OTPDigits = 6

var otpUpperBound = big.NewInt(1_000_000)

// GenerateOTP returns a zero-padded 6 digit code drawn from crypto/rand
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpUpperBound)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}
