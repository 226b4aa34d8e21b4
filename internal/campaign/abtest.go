package campaign

import (
	"crypto/sha256"
	"encoding/binary"
)

// TestRatio returns the fraction of a list used for the test split, scaled
// inversely with list size: small lists need a larger slice for a readable
// signal, large lists can spare only a thin one.
func TestRatio(subscriberCount int) float64 {
	switch {
	case subscriberCount < 100:
		return 0.5
	case subscriberCount <= 500:
		return 0.2
	default:
		return 0.1
	}
}

// Score is the fixed-weight engagement score used to pick a winner: opens
// dominate, clicks break them apart. Rates are computed against the
// variant's own send count; an unsent variant scores zero.
func Score(v *Variant) float64 {
	if v.SentCount == 0 {
		return 0
	}
	openRate := float64(v.OpenCount) / float64(v.SentCount)
	clickRate := float64(v.ClickCount) / float64(v.SentCount)
	return 0.7*openRate + 0.3*clickRate
}

// DetermineWinner compares both arms and returns the winning label. Ties
// go to "A".
func DetermineWinner(a, b *Variant) string {
	if Score(b) > Score(a) {
		return "B"
	}
	return "A"
}

// AssignVariant deterministically maps a subscriber to "A" or "B" by
// hashing their email with the campaign ID. The same subscriber always
// lands in the same arm, so resumed or retried sends never flip
// assignments.
func AssignVariant(campaignID [16]byte, email string) string {
	h := sha256.New()
	h.Write([]byte(email))
	h.Write(campaignID[:])
	sum := h.Sum(nil)
	if binary.BigEndian.Uint64(sum[:8])%2 == 0 {
		return "A"
	}
	return "B"
}

// TestPoolSize returns how many subscribers the test slice covers for a
// list of the given size, at minimum two so both arms get at least one
// recipient.
func TestPoolSize(subscriberCount int) int {
	n := int(float64(subscriberCount) * TestRatio(subscriberCount))
	if n < 2 && subscriberCount >= 2 {
		n = 2
	}
	return n
}
