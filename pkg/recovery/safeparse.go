package recovery

import (
	"strings"

	"github.com/pkg/errors"
)

// sliceTopLevel returns the text from the first opening bracket to its
// matching closer, honouring string literals, together with the offset of
// the bracket. An unbalanced value runs to the end of the input.
func sliceTopLevel(s string) (string, int, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", -1, false
	}
	depth := 0
	inString := false
	var quote byte
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			quote = c
		case '\'':
			if i > start && opensValue(rune(lastNonSpace(s[start:i]))) {
				inString = true
				quote = c
			}
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], start, true
			}
		}
	}
	return s[start:], start, true
}

func lastNonSpace(s string) byte {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return s[i]
	}
	return 0
}

// safeParse tries each top-level bracketed span of s in order and returns
// the first one that decodes as a JSON object or array. Spans are never
// repaired here, so prose with brackets in it is not mistaken for structure.
func safeParse(s string) (interface{}, error) {
	last := errors.New("no object or array found")
	rest := s
	for {
		slice, start, ok := sliceTopLevel(rest)
		if !ok {
			return nil, last
		}
		v, err := parseStrict(slice)
		if err == nil {
			switch v.(type) {
			case map[string]interface{}, []interface{}:
				return v, nil
			}
			err = errors.Errorf("top-level value is %T, not an object or array", v)
		}
		last = err
		rest = rest[start+len(slice):]
	}
}
