package transcript

import (
	"strings"
	"unicode/utf8"
)

const esc = 0x1b

// Normalize removes bytes that would corrupt document rendering while
// leaving every visible character untouched:
//   - CRLF becomes LF and a bare CR is dropped
//   - ANSI CSI (ESC [ ... final) and OSC (ESC ] ... BEL or ESC \) sequences
//     are dropped whole
//   - other C0 controls except tab and newline, DEL and C1 controls are dropped
//   - invalid UTF-8 becomes U+FFFD
//
// Percent signs and format verbs such as %d are ordinary text here.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "�")

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\r':
			i++
			continue
		case c == esc:
			i = skipEscape(s, i)
			continue
		case c == '\n' || c == '\t':
			b.WriteByte(c)
			i++
			continue
		case c < 0x20 || c == 0x7f:
			i++
			continue
		case c < utf8.RuneSelf:
			b.WriteByte(c)
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		if r >= 0x80 && r <= 0x9f {
			i += size
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// skipEscape returns the index just past the escape sequence starting at i.
func skipEscape(s string, i int) int {
	if i+1 >= len(s) {
		return len(s)
	}
	switch s[i+1] {
	case '[':
		j := i + 2
		for j < len(s) {
			c := s[j]
			j++
			if c >= 0x40 && c <= 0x7e {
				return j
			}
		}
		return len(s)
	case ']':
		j := i + 2
		for j < len(s) {
			if s[j] == 0x07 {
				return j + 1
			}
			if s[j] == esc && j+1 < len(s) && s[j+1] == '\\' {
				return j + 2
			}
			j++
		}
		return len(s)
	default:
		// Two-byte sequences such as ESC c or ESC 7.
		if s[i+1] >= utf8.RuneSelf {
			return i + 1
		}
		return i + 2
	}
}
