package rides

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// otpRange covers the four-digit codes 1000..9999.
const (
	otpMin   = 1000
	otpRange = 9000
)

// GenerateOTP returns a uniformly random four-digit code. The first
// digit is never zero so the string length is stable.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%d", otpMin+n.Int64()), nil
}

// VerifyOTP compares codes in constant time so response timing leaks
// nothing about the expected value.
func VerifyOTP(expected, provided string) bool {
	if len(expected) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
