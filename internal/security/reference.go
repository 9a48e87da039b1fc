package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// referenceBytes is the entropy of a registration reference (256 bits).
const referenceBytes = 32

// NewReference returns an opaque, unguessable reference for a temporary registration.
// It is URL-safe base64 without padding so it can be carried in a cookie verbatim.
func NewReference() (string, error) {
	b := make([]byte, referenceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashReference returns the hex SHA-256 of a reference. Durable tables key on the
// hash so a database dump never contains a usable session reference.
func HashReference(ref string) string {
	h := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(h[:])
}

// ValidReference reports whether s has the shape produced by NewReference.
func ValidReference(s string) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(referenceBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
