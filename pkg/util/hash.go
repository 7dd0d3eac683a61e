package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashEmail returns a short, stable fingerprint of an email address so logs can
// correlate submissions without carrying the address itself.
func HashEmail(email string) string {
	if strings.TrimSpace(email) == "" {
		return ""
	}
	return HashString(email)[:16]
}

// HashString returns the SHA-256 hash of an arbitrary string after trimming and lowercasing it.
func HashString(input string) string {
	return hashString(strings.TrimSpace(strings.ToLower(input)))
}

func hashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
