package newsletter

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether the address is plausibly deliverable.
func ValidateEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	local, _, ok := strings.Cut(email, "@")
	if !ok || len(local) > 64 {
		return false
	}
	return emailPattern.MatchString(email)
}

// NormalizeEmail lowercases and trims an address for storage and hashing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail returns the SHA-256 hex digest of the normalized address.
func HashEmail(email string) string {
	h := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(h[:])
}

// NewToken returns a 32-byte random hex token for confirm/unsubscribe links.
func NewToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// ValidSlug matches lowercase URL slugs for signup pages.
var ValidSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
