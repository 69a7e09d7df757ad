package recovery

import "strings"

// repairBackslashes doubles backslashes that do not start a valid JSON escape
// inside strings and drops stray backslashes outside of them.
func repairBackslashes(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 8)

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			switch c {
			case '"':
				inString = true
				out.WriteByte(c)
			case '\\':
				// dropped
			default:
				out.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			inString = false
			out.WriteByte(c)
		case '\\':
			if i+1 >= len(s) {
				out.WriteString(`\\`)
				continue
			}
			next := s[i+1]
			switch {
			case strings.IndexByte(`"\/bfnrt`, next) >= 0:
				out.WriteByte(c)
				out.WriteByte(next)
				i++
			case next == 'u' && isHex4(s, i+2):
				out.WriteString(s[i : i+6])
				i += 5
			default:
				out.WriteString(`\\`)
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

func isHex4(s string, at int) bool {
	if at+4 > len(s) {
		return false
	}
	for i := at; i < at+4; i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
