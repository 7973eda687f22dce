package lookup

// MaxStoredLength is the size at which legacy storage silently cut the
// serialized literal (a 64KiB TEXT column).
const MaxStoredLength = 65535

// ParseStored parses text that may have been cut at MaxStoredLength. Only a
// text of exactly that length that fails to parse is repaired with
// RepairTruncated and parsed again; repaired reports whether that happened.
// Any other malformed text returns its *ParseError.
func ParseStored(text string) (vars map[string]string, repaired bool, err error) {
	vars, err = Parse(text)
	if err == nil || len(text) != MaxStoredLength {
		return vars, false, err
	}
	fixed := RepairTruncated(text)
	if fixed == text {
		return nil, false, err
	}
	vars, err = Parse(fixed)
	if err != nil {
		return nil, false, err
	}
	return vars, true, nil
}

// RepairTruncated drops the trailing partial entry of a cut literal and closes
// every hash and merge call still open at the last complete entry. Text without
// any complete entry is returned unchanged.
func RepairTruncated(text string) string {
	var (
		stack     []byte
		safe      = -1
		safeStack []byte
		quote     byte
		escaped   bool
	)
	mark := func(i int) {
		safe = i
		safeStack = append(safeStack[:0], stack...)
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			stack = append(stack, '{')
			mark(i + 1)
		case '(':
			stack = append(stack, '(')
		case '}', ')':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			mark(i + 1)
		case ',':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				mark(i + 1)
			}
		}
	}

	if safe < 0 {
		return text
	}
	out := []byte(text[:safe])
	for i := len(safeStack) - 1; i >= 0; i-- {
		if safeStack[i] == '{' {
			out = append(out, '}')
		} else {
			out = append(out, ')')
		}
	}
	return string(out)
}
