package lookup

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// phpPrologues open the legacy PHP dump; both spellings occur in the archive.
	phpPrologues = []string{"<?\n$vars = array(\n", "<?$vars = array(\n"}
	phpEpilogue  = ");\n?>"

	// sLineRe matches "s_key|value" lines, which carry string fields.
	sLineRe = regexp.MustCompile(`(?m)^s(_[^|\n]*)\|(.*)$`)

	// pairLineRe matches any other "key|value" line not already rewritten.
	pairLineRe = regexp.MustCompile(`(?m)^([^"\n][^|\n]*)\|(.*)$`)

	lookupEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#`, `\#`)

	// keyRenames is applied to the whole buffer, values included.
	keyRenames = strings.NewReplacer(
		"_top", "_max",
		"_bot", "_min",
		"rztop", "rzmax",
		"rzbot", "rzmin",
	)
)

// Normalized is lookup text rewritten into the canonical literal syntax.
type Normalized struct {
	Text string
	// Replaced counts byte sequences the sanitizer had to substitute.
	Replaced int
}

// Normalize sanitizes raw and rewrites it from format into canonical
// {"key" => "value", ...} syntax. The sanitizer may be nil for UTF-8.
func Normalize(raw []byte, format Format, s *Sanitizer) (Normalized, error) {
	content, replaced := s.Sanitize(raw)

	switch format {
	case FormatRubyHash:
	case FormatPHP:
		for _, p := range phpPrologues {
			content = strings.ReplaceAll(content, p, "{")
		}
		content = strings.ReplaceAll(content, phpEpilogue, "}")
	case FormatLookup:
		content = normalizePipeDelimited(content)
	default:
		return Normalized{}, fmt.Errorf("normalize: unknown lookup format %q", format)
	}

	return Normalized{Text: content, Replaced: replaced}, nil
}

func normalizePipeDelimited(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = lookupEscaper.Replace(content)
	content = sLineRe.ReplaceAllString(content, `"$1" => "$2",`)
	content = pairLineRe.ReplaceAllString(content, `"$1" => "$2",`)
	content = keyRenames.Replace(content)
	return "{" + content + "}"
}

// ReadFile reads the lookup at path and normalizes it.
func ReadFile(path string, format Format, s *Sanitizer) (Normalized, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Normalized{}, err
	}
	return Normalize(raw, format, s)
}
