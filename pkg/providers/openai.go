package providers

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIMessages converts messages to the OpenAI chat wire shape, which both
// the edge network and local OpenAI-compatible servers speak.
func OpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	ret := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		ret = append(ret, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return ret
}

// OpenAIContent returns the trimmed content of the first choice of a chat
// completion response.
func OpenAIContent(body []byte) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "could not decode completion response")
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyContent
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}
