package lookup

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Placeholder replaces every byte sequence that is invalid in the configured charset.
const Placeholder = '?'

// Sanitizer converts lookup bytes in a configured charset into valid UTF-8,
// substituting Placeholder for anything that cannot be decoded.
type Sanitizer struct {
	charset string
	dec     encoding.Encoding // nil when the charset is UTF-8
}

// NewSanitizer resolves charset by its IANA name. An empty name means UTF-8.
func NewSanitizer(charset string) (*Sanitizer, error) {
	if charset == "" {
		charset = "UTF-8"
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("resolve charset %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", charset)
	}
	name, err := ianaindex.IANA.Name(enc)
	if err != nil {
		return nil, fmt.Errorf("resolve charset %q: %w", charset, err)
	}
	s := &Sanitizer{charset: name}
	if name != "UTF-8" {
		s.dec = enc
	}
	return s, nil
}

// Charset returns the canonical IANA name of the configured charset.
func (s *Sanitizer) Charset() string {
	if s == nil {
		return "UTF-8"
	}
	return s.charset
}

// Sanitize returns b as UTF-8 text and the number of replaced sequences.
func (s *Sanitizer) Sanitize(b []byte) (string, int) {
	if s == nil || s.dec == nil {
		return sanitizeUTF8(b)
	}
	out, err := s.dec.NewDecoder().Bytes(b)
	if err != nil {
		return sanitizeUTF8(b)
	}
	// x/text decoders emit U+FFFD for undecodable input.
	n := strings.Count(string(out), string(utf8.RuneError))
	if n == 0 {
		return string(out), 0
	}
	return strings.ReplaceAll(string(out), string(utf8.RuneError), string(Placeholder)), n
}

func sanitizeUTF8(b []byte) (string, int) {
	if utf8.Valid(b) {
		return string(b), 0
	}
	var sb strings.Builder
	sb.Grow(len(b))
	n := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteByte(Placeholder)
			n++
			b = b[1:]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String(), n
}
