// Package otp generates, hashes and delivers one-time verification codes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// DefaultDigits is the code length used when none is configured.
const DefaultDigits = 6

var ten = big.NewInt(10)

// Generate returns a numeric code of the given length (4–8 digits) drawn from crypto/rand.
func Generate(digits int) (string, error) {
	if digits < 4 || digits > 8 {
		return "", fmt.Errorf("otp: invalid length %d", digits)
	}
	s := make([]byte, digits)
	for i := range s {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = byte('0' + n.Int64())
	}
	return string(s), nil
}

// Hash returns the hex SHA-256 of the code. Only the hash is persisted.
func Hash(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// Equal compares a submitted code against a stored hash in constant time.
func Equal(submitted, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(submitted)), []byte(storedHash)) == 1
}
