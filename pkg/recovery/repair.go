package recovery

import (
	"strings"
	"unicode"
)

// repairStructure rewrites near-JSON into JSON. It starts at the first
// bracket, converts single-quoted strings, quotes bare keys, drops trailing
// commas, truncates at a mismatched closer or once the root value closes,
// terminates an unterminated string and appends missing closers.
func repairStructure(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	runes := []rune(s[start:])
	out := make([]rune, 0, len(runes)+8)

	var stack []rune
	inString := false
	var quote rune
	escaped := false
	prev := rune(0)
	lastStringIsKey := false

	expectingKey := func() bool {
		return len(stack) > 0 && stack[len(stack)-1] == '{' && (prev == '{' || prev == ',')
	}

loop:
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				out = append(out, r)
			case r == '\\':
				if quote == '\'' && i+1 < len(runes) && runes[i+1] == '\'' {
					out = append(out, '\'')
					i++
					continue
				}
				escaped = true
				out = append(out, r)
			case r == quote:
				inString = false
				prev = '"'
				out = append(out, '"')
			case r == '"':
				out = append(out, '\\', '"')
			default:
				out = append(out, r)
			}
			continue
		}

		switch {
		case r == '"' || (r == '\'' && opensValue(prev)):
			lastStringIsKey = expectingKey()
			inString = true
			quote = r
			out = append(out, '"')
		case r == '{' || r == '[':
			stack = append(stack, r)
			prev = r
			out = append(out, r)
		case r == '}' || r == ']':
			if len(stack) == 0 || closerFor(stack[len(stack)-1]) != r {
				break loop
			}
			out = trimTrailingComma(out)
			stack = stack[:len(stack)-1]
			prev = r
			out = append(out, r)
			if len(stack) == 0 {
				break loop
			}
		case isIdentStart(r) && expectingKey():
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			k := j
			for k < len(runes) && unicode.IsSpace(runes[k]) {
				k++
			}
			ident := runes[i:j]
			if k < len(runes) && runes[k] == ':' {
				out = append(out, '"')
				out = append(out, ident...)
				out = append(out, '"')
				prev = '"'
				lastStringIsKey = true
			} else {
				out = append(out, ident...)
				prev = ident[len(ident)-1]
			}
			i = j - 1
		default:
			if !unicode.IsSpace(r) {
				prev = r
			}
			out = append(out, r)
		}
	}

	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out = append(out, '"')
		prev = '"'
	}

	if len(stack) > 0 {
		out = trimRightSpace(out)
		switch {
		case prev == ',':
			out = trimTrailingComma(out)
		case prev == ':':
			out = append(out, []rune(" null")...)
		case prev == '"' && lastStringIsKey && stack[len(stack)-1] == '{':
			out = append(out, []rune(": null")...)
		}
		for i := len(stack) - 1; i >= 0; i-- {
			out = append(out, closerFor(stack[i]))
		}
	}

	return string(out)
}

func closerFor(open rune) rune {
	if open == '[' {
		return ']'
	}
	return '}'
}

func trimRightSpace(out []rune) []rune {
	for len(out) > 0 && unicode.IsSpace(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

// trimTrailingComma removes a comma that is followed only by whitespace.
func trimTrailingComma(out []rune) []rune {
	k := len(out) - 1
	for k >= 0 && unicode.IsSpace(out[k]) {
		k--
	}
	if k >= 0 && out[k] == ',' {
		return append(out[:k], out[k+1:]...)
	}
	return out
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '-' || unicode.IsDigit(r)
}
