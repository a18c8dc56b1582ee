// Package lenientjson parses loosely formatted JSON-like blocks as they appear
// in chat posts and model answers: single-quoted strings, Python-style
// None/True/False literals, and surrounding prose. Strict parsing is always
// attempted first; normalization is a single retry, not a general repair.
package lenientjson

import (
	"encoding/json"
	"strings"
)

// Normalize rewrites a loosely formatted object into strict JSON:
// single quotes become double quotes (escaped quotes inside strings are
// preserved) and bare None/True/False become null/true/false.
//
// Known limitation: a string value that legitimately contains a single quote
// or one of the literal words can be mangled. Callers treat the result as
// best effort.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	quote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '\\' && i+1 < len(s) {
				// keep escape pairs verbatim, but rewrite \' to ' since
				// strict JSON has no single-quote escape
				next := s[i+1]
				if next == '\'' {
					b.WriteByte('\'')
				} else {
					b.WriteByte(c)
					b.WriteByte(next)
				}
				i++
				continue
			}
			if c == quote {
				inString = false
				b.WriteByte('"')
				continue
			}
			if c == '"' && quote == '\'' {
				b.WriteString(`\"`)
				continue
			}
			b.WriteByte(c)
		case c == '"' || c == '\'':
			inString = true
			quote = c
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}

	out := b.String()
	out = replaceBareWord(out, "None", "null")
	out = replaceBareWord(out, "True", "true")
	out = replaceBareWord(out, "False", "false")
	return out
}

// replaceBareWord replaces word outside of double-quoted strings only.
func replaceBareWord(s, word, repl string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); {
		c := s[i]
		if inString {
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == '"' {
				inString = false
			}
			b.WriteByte(c)
			i++
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			i++
			continue
		}
		if strings.HasPrefix(s[i:], word) && isWordBoundary(s, i-1) && isWordBoundary(s, i+len(word)) {
			b.WriteString(repl)
			i += len(word)
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func isWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9'))
}

// Unmarshal parses data strictly, and on failure retries once after
// Normalize. It returns whether the lenient pass was used.
func Unmarshal(data []byte, v interface{}) (lenient bool, err error) {
	if err = json.Unmarshal(data, v); err == nil {
		return false, nil
	}
	if err2 := json.Unmarshal([]byte(Normalize(string(data))), v); err2 == nil {
		return true, nil
	}
	return false, err
}

// FirstBalancedObject locates the first balanced {...} span in text using
// brace-depth counting, skipping braces inside quoted strings. It returns
// the byte offsets [start, end) of the span, or ok=false.
func FirstBalancedObject(text string) (start, end int, ok bool) {
	start = strings.IndexByte(text, '{')
	if start == -1 {
		return 0, 0, false
	}
	depth := 0
	inString := false
	quote := byte(0)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}
	return 0, 0, false
}
