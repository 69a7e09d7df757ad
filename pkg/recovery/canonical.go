package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var errNullDocument = errors.New("document is null")

// parseStrict decodes exactly one JSON document. Numbers are kept as
// json.Number so canonical output does not lose precision.
func parseStrict(text string) (interface{}, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty input")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errors.New("trailing data after document")
	}
	if v == nil {
		return nil, errNullDocument
	}
	return v, nil
}

// Canonical serializes v as compact JSON with sorted object keys and without
// HTML escaping.
func Canonical(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalizeValue(v)); err != nil {
		return "", errors.Wrap(err, "could not serialize recovered value")
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// normalizeValue converts maps with non-string keys, as produced by YAML
// decoders, into shapes encoding/json can serialize.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
