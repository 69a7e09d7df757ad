// Package tokens estimates prompt sizes before they are sent to a backend.
package tokens

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is used for models the tokenizer does not know, which is
// every local and non-OpenAI model.
const DefaultEncoding = tokenizer.Cl100kBase

var (
	codecsMu sync.Mutex
	codecs   = map[string]tokenizer.Codec{}
)

// Codec returns the codec for model, falling back to DefaultEncoding.
func Codec(model string) (tokenizer.Codec, error) {
	codecsMu.Lock()
	defer codecsMu.Unlock()

	if c, ok := codecs[model]; ok {
		return c, nil
	}

	c, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		c, err = tokenizer.Get(DefaultEncoding)
		if err != nil {
			return nil, errors.Wrap(err, "could not load default encoding")
		}
	}
	codecs[model] = c
	return c, nil
}

// Count returns the number of tokens in text for model.
func Count(model string, text string) (int, error) {
	c, err := Codec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

// perMessageOverhead approximates the role and separator tokens chat formats
// add around every message.
const perMessageOverhead = 4

// EstimateChat estimates the prompt size of a chat request. Contents that
// fail to encode are skipped.
func EstimateChat(model string, contents ...string) int {
	total := 0
	for _, content := range contents {
		n, err := Count(model, content)
		if err != nil {
			continue
		}
		total += n + perMessageOverhead
	}
	return total
}
