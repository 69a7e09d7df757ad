// Package providers holds the machinery shared by the completion backends:
// health gating, whole-request retries, model caching, prompt
// classification and response finishing.
package providers

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func Contents(messages []Message) []string {
	ret := make([]string, 0, len(messages))
	for _, m := range messages {
		ret = append(ret, m.Content)
	}
	return ret
}

// Envelope is what an adapter sends. It is encoded once into a
// dispatch.Request and the same bytes go out on every attempt.
type Envelope struct {
	Model        string
	Messages     []Message
	ExtraHeaders map[string]string
}

// Request encodes body, the provider-specific rendering of the envelope,
// together with the envelope's headers.
func (e Envelope) Request(body interface{}) (*dispatch.Request, error) {
	return JSONRequest(body, e.ExtraHeaders)
}

// Completer is implemented by every chat-completion backend.
type Completer interface {
	Complete(ctx context.Context, messages []Message, model string) (string, error)
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// HealthChecker is implemented by backends with a health probe.
type HealthChecker interface {
	Name() string
	CheckHealth(ctx context.Context) HealthState
}

// JSONRequest builds a dispatcher request carrying v as a JSON body.
func JSONRequest(v interface{}, headers map[string]string) (*dispatch.Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode request body")
	}
	return &dispatch.Request{
		Body:        body,
		ContentType: "application/json",
		Headers:     headers,
	}, nil
}

// BearerHeaders returns an Authorization header for key, or nil when key is
// empty.
func BearerHeaders(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}
