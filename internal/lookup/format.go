package lookup

import (
	"fmt"
	"strings"
)

// Format identifies one of the legacy lookup file encodings.
type Format string

const (
	// FormatPHP is the old "<?$vars = array(...); ?>" dump.
	FormatPHP Format = "php"
	// FormatRubyHash files already contain the canonical literal.
	FormatRubyHash Format = "ruby_hash"
	// FormatLookup is the pipe-delimited key|value line format.
	FormatLookup Format = "lookup"
)

var extensions = map[Format]string{
	FormatPHP:      ".array.php",
	FormatRubyHash: ".hash.rb",
	FormatLookup:   ".lookup",
}

// ParseFormat maps a configuration value to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := extensions[f]; !ok {
		return "", fmt.Errorf("unknown lookup format %q", s)
	}
	return f, nil
}

// Extension returns the filename extension for files in this format,
// including the leading dot.
func (f Format) Extension() string {
	return extensions[f]
}

func (f Format) String() string { return string(f) }

// FormatOf infers the format of a lookup file from its name.
func FormatOf(name string) (Format, bool) {
	for f, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return f, true
		}
	}
	return "", false
}
