package lookup

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_UTF8(t *testing.T) {
	s, err := NewSanitizer("")
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", s.Charset())

	tests := []struct {
		name     string
		input    []byte
		expected string
		replaced int
	}{
		{"valid ascii", []byte("EGLL 14C"), "EGLL 14C", 0},
		{"valid multibyte", []byte("Zürich"), "Zürich", 0},
		{"lone latin1 byte", []byte("caf\xe9 ok"), "caf? ok", 1},
		{"two bad bytes", []byte("\xff\xfeabc"), "??abc", 2},
		{"truncated sequence at end", []byte("ab\xe2\x82"), "ab??", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, n := s.Sanitize(tt.input)
			assert.Equal(t, tt.expected, out)
			assert.Equal(t, tt.replaced, n)
			assert.True(t, utf8.ValidString(out))
		})
	}
}

func TestSanitizer_NilIsUTF8(t *testing.T) {
	var s *Sanitizer
	out, n := s.Sanitize([]byte("a\x80b"))
	assert.Equal(t, "a?b", out)
	assert.Equal(t, 1, n)
}

func TestSanitizer_Latin1(t *testing.T) {
	s, err := NewSanitizer("ISO-8859-1")
	require.NoError(t, err)

	out, n := s.Sanitize([]byte("caf\xe9"))
	assert.Equal(t, "café", out)
	assert.Zero(t, n)
}

func TestNewSanitizer_UnknownCharset(t *testing.T) {
	_, err := NewSanitizer("klingon-8")
	assert.Error(t, err)
}
