package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := Generate()
		assert.Len(t, code, Length)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(Alphabet, ch), "unexpected glyph %q in %s", ch, code)
		}
		seen[code] = struct{}{}
	}
	// 200 draws from a 32^6 space colliding down to a handful would mean
	// the generator is broken, not unlucky.
	assert.Greater(t, len(seen), 190)
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"ABC234", true},
		{"ZZZZZZ", true},
		{"AB0O1I", true}, // looser than the generator alphabet on purpose
		{"abc234", false},
		{"ABC23", false},
		{"ABC2345", false},
		{"AB-C23", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsValid(tc.code), "code %q", tc.code)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "ABC-234", Format("ABC234"))
	assert.Equal(t, "AB", Format("AB"))
	assert.Equal(t, "", Format(""))
	assert.Equal(t, "ABC2345", Format("ABC2345"))
}
