// Package roomcode produces and formats the short join codes players share.
// Codes are pointers to rooms, not secrets, so plain randomness is enough.
package roomcode

import (
	"crypto/rand"
	"regexp"
)

// Alphabet drops 0/1/I/O so a code read aloud or off a screen survives.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const Length = 6

// validRe is looser than the generator's alphabet on purpose: clients may
// type codes with the ambiguous glyphs and lookup should still be attempted.
var validRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// Generate draws a fresh 6-char code. Uniqueness against live rooms is the
// repository's job, not ours.
func Generate() string {
	b := make([]byte, Length)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = Alphabet[int(b[i])%len(Alphabet)]
	}
	return string(b)
}

// IsValid reports whether code has the shape of a join code.
func IsValid(code string) bool {
	return validRe.MatchString(code)
}

// Format renders a code for display with a break at the midpoint.
// Anything that is not exactly 6 chars is echoed back untouched.
func Format(code string) string {
	if len(code) != Length {
		return code
	}
	return code[:Length/2] + "-" + code[Length/2:]
}
