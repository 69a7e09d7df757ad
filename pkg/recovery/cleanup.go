package recovery

import (
	"strings"
	"unicode"
)

var invisibleReplacer = strings.NewReplacer(
	"\ufeff", "",
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
)

// cleanup strips comments outside of strings, escapes raw control characters
// inside strings and drops them elsewhere. Structure is left untouched.
func cleanup(s string) string {
	s = invisibleReplacer.Replace(s)
	runes := []rune(s)

	var out strings.Builder
	out.Grow(len(s))

	inString := false
	var quote rune
	escaped := false
	prev := rune(0)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				out.WriteRune(r)
			case r == '\\':
				escaped = true
				out.WriteRune(r)
			case r == quote:
				inString = false
				prev = r
				out.WriteRune(r)
			case r == '\n':
				out.WriteString(`\n`)
			case r == '\r':
				out.WriteString(`\r`)
			case r == '\t':
				out.WriteString(`\t`)
			case r < 0x20 || r == 0x7f:
				// dropped
			default:
				out.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '"' || (r == '\'' && opensValue(prev)):
			inString = true
			quote = r
			out.WriteRune(r)
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				out.WriteRune('\n')
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := indexRunes(runes, i+2, "*/")
			if end < 0 {
				i = len(runes)
			} else {
				i = end + 1
			}
			out.WriteRune(' ')
		case r == '\n' || r == '\r' || r == '\t':
			out.WriteRune(r)
		case unicode.IsControl(r):
			// dropped
		default:
			if !unicode.IsSpace(r) {
				prev = r
			}
			out.WriteRune(r)
		}
	}

	return strings.TrimSpace(out.String())
}

func indexRunes(runes []rune, from int, needle string) int {
	n := []rune(needle)
outer:
	for i := from; i+len(n) <= len(runes); i++ {
		for j := range n {
			if runes[i+j] != n[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// opensValue reports whether a single quote following prev can start a
// string. Apostrophes in prose never follow a structural character.
func opensValue(prev rune) bool {
	switch prev {
	case '{', '[', ',', ':':
		return true
	}
	return false
}
