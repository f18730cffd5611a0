package recovery

import (
	"strings"
)

// Repair is a single syntax-healing transformation. Apply must be safe to
// run on any input and must return the input unchanged when it has nothing
// to fix.
type Repair struct {
	Name  string
	Apply func(string) string
}

// DefaultRepairs returns the repairs in the order the pipeline applies them.
func DefaultRepairs() []Repair {
	return []Repair{
		{Name: "quote_bare_keys", Apply: QuoteBareKeys},
		{Name: "close_unterminated_strings", Apply: CloseUnterminatedStrings},
		{Name: "remove_trailing_commas", Apply: RemoveTrailingCommas},
		{Name: "insert_missing_commas", Apply: InsertMissingCommas},
		{Name: "balance_brackets", Apply: BalanceBrackets},
	}
}

// QuoteBareKeys wraps identifier-style object keys in double quotes:
// {title: "x"} becomes {"title": "x"}. Text inside strings is left alone.
func QuoteBareKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString, escaped := false, false
	var last byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
				last = '"'
			}
			continue
		}

		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}

		if (last == '{' || last == ',') && isIdentStart(ch) {
			end := i + 1
			for end < len(s) && isIdentPart(s[end]) {
				end++
			}
			next := end
			for next < len(s) && (s[next] == ' ' || s[next] == '\t') {
				next++
			}
			if next < len(s) && s[next] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:end])
				b.WriteByte('"')
				last = '"'
				i = end - 1
				continue
			}
		}

		b.WriteByte(ch)
		if !isSpace(ch) {
			last = ch
		}
	}
	return b.String()
}

// CloseUnterminatedStrings appends a closing quote to every line that ends
// inside a string literal.
func CloseUnterminatedStrings(s string) string {
	lines := strings.Split(s, "\n")
	changed := false
	for i, line := range lines {
		body := strings.TrimRight(line, "\r")
		if countUnescapedQuotes(body)%2 == 1 {
			lines[i] = body + `"` + line[len(body):]
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(lines, "\n")
}

// RemoveTrailingCommas drops a comma that directly precedes a closing
// brace or bracket.
func RemoveTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			next := skipSpace(s, i+1)
			if next < len(s) && (s[next] == '}' || s[next] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// InsertMissingCommas adds the separator between two adjacent values, for
// example `"a": 1 "b": 2` or `{...} {...}` inside an array.
func InsertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	inString, escaped := false, false
	var last byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
				last = '"'
			}
			continue
		}

		if (ch == '"' && endsValue(last)) || ((ch == '{' || ch == '[') && (last == '}' || last == ']')) {
			b.WriteByte(',')
		}
		if ch == '"' {
			inString = true
		}
		b.WriteByte(ch)
		if !isSpace(ch) && ch != '"' {
			last = ch
		}
	}
	return b.String()
}

// BalanceBrackets closes an open string and appends the closers needed to
// balance every unmatched opener, innermost first. A dangling comma or a
// key with no value at the cut point is dropped or nulled first.
func BalanceBrackets(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) > 0 && closerFor(stack[len(stack)-1]) == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 && !inString {
		return s
	}

	out := s
	if inString {
		out += `"`
	}
	out = strings.TrimRight(out, " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += " null"
	}

	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(stack[i]))
	}
	return b.String()
}

func countUnescapedQuotes(line string) int {
	count := 0
	escaped := false
	for i := 0; i < len(line); i++ {
		switch {
		case escaped:
			escaped = false
		case line[i] == '\\':
			escaped = true
		case line[i] == '"':
			count++
		}
	}
	return count
}

func endsValue(last byte) bool {
	switch {
	case last == '"', last == '}', last == ']':
		return true
	case last >= '0' && last <= '9':
		return true
	case last == 'e', last == 'l':
		// true, false, null
		return true
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch == '-' || (ch >= '0' && ch <= '9')
}
