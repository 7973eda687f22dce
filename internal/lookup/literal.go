package lookup

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ParseError reports canonical literal text that is not a flat key/value
// structure, most often a truncated file or an unescaped delimiter.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse lookup literal at offset %d: %s", e.Offset, e.Reason)
}

// Parse reads canonical literal text into a flat mapping. The accepted grammar is
//
//	text   = hash { ".merge(" hash ")" }
//	hash   = "{" [ pair { "," pair } [ "," ] ] "}"
//	pair   = scalar "=>" scalar
//	scalar = double-quoted | single-quoted | bare token
//
// Keys from each merged hash override earlier ones. Nothing is ever evaluated.
func Parse(text string) (map[string]string, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty lookup")
	}

	vars, err := p.hash()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.eof() {
			return vars, nil
		}
		if !p.consume(".merge(") {
			return nil, p.errorf("unexpected %q after hash", p.peekN(8))
		}
		p.skipSpace()
		other, err := p.hash()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(")") {
			return nil, p.errorf("missing ) after merge")
		}
		maps.Copy(vars, other)
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) peekN(n int) string {
	end := min(p.pos+n, len(p.src))
	return p.src[p.pos:end]
}

func (p *parser) consume(tok string) bool {
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// skipSpace skips whitespace and "#" comments.
func (p *parser) skipSpace() {
	for !p.eof() {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) hash() (map[string]string, error) {
	if !p.consume("{") {
		return nil, p.errorf("expected {")
	}
	vars := make(map[string]string)
	for {
		p.skipSpace()
		if p.consume("}") {
			return vars, nil
		}
		key, err := p.scalar()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume("=>") {
			return nil, p.errorf("expected => after key %q", key)
		}
		p.skipSpace()
		value, err := p.scalar()
		if err != nil {
			return nil, err
		}
		vars[key] = value

		p.skipSpace()
		if p.consume(",") {
			continue
		}
		if p.consume("}") {
			return vars, nil
		}
		if p.eof() {
			return nil, p.errorf("unterminated hash")
		}
		return nil, p.errorf("expected , or } after value of %q", key)
	}
}

func (p *parser) scalar() (string, error) {
	if p.eof() {
		return "", p.errorf("unexpected end of input")
	}
	switch p.src[p.pos] {
	case '"':
		return p.doubleQuoted()
	case '\'':
		return p.singleQuoted()
	}
	return p.bare()
}

func (p *parser) doubleQuoted() (string, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", &ParseError{Offset: start, Reason: "unterminated string"}
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 's':
				sb.WriteByte(' ')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", &ParseError{Offset: start, Reason: "unterminated string"}
}

func (p *parser) singleQuoted() (string, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == '\'':
			return sb.String(), nil
		case c == '\\' && !p.eof() && (p.src[p.pos] == '\'' || p.src[p.pos] == '\\'):
			sb.WriteByte(p.src[p.pos])
			p.pos++
		default:
			sb.WriteByte(c)
		}
	}
	return "", &ParseError{Offset: start, Reason: "unterminated string"}
}

func isBareChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '_' || c == '.' || c == '+' || c == '-'
}

func (p *parser) bare() (string, error) {
	start := p.pos
	for !p.eof() && isBareChar(p.src[p.pos]) {
		p.pos++
	}
	tok := p.src[start:p.pos]
	switch tok {
	case "":
		return "", p.errorf("expected value, found %q", p.peekN(1))
	case "nil", "null", "NULL":
		return "", nil
	}
	return tok, nil
}

// Serialize writes vars as canonical literal text with sorted keys. The output
// parses back to an equal mapping.
func Serialize(vars map[string]string) string {
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		fmt.Fprintf(&sb, "\"%s\" => \"%s\",\n", literalEscaper.Replace(k), literalEscaper.Replace(vars[k]))
	}
	sb.WriteString("}")
	return sb.String()
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#`, `\#`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
