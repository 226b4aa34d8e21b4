package referral

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet deliberately excludes O, 0, I, and 1: referral codes end up
// in handwritten notes and spoken conversation, and those glyphs are
// routinely confused for each other.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of generated referral codes.
const CodeLength = 8

// GenerateCode returns a random referral code drawn from the unambiguous
// alphabet.
func GenerateCode() string {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(fmt.Sprintf("referral: entropy source unavailable: %v", err))
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}

// codeChecker reports whether a referral code is already taken.
type codeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// UniqueCode generates a code that does not collide with any existing
// subscriber. With a 32^8 space collisions are vanishingly rare, so a small
// retry budget is plenty; exhausting it means something is badly wrong with
// the subscribers table.
func UniqueCode(ctx context.Context, store codeChecker) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := GenerateCode()
		exists, err := store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("referral: could not generate a unique code after 5 attempts")
}
