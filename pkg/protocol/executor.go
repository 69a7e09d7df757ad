package protocol

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/go-go-golems/relay/pkg/settings"
)

type StepRequest struct {
	ContextID string        `json:"contextId"`
	Index     int           `json:"stepIndex"`
	Total     int           `json:"totalSteps"`
	Keywords  []string      `json:"operationKeywords"`
	Step      recovery.Step `json:"step"`
}

// StepExecutor performs a single plan step. The returned bytes are passed
// back to the caller untouched.
type StepExecutor interface {
	Execute(ctx context.Context, endpoint string, req StepRequest) (json.RawMessage, error)
}

// HTTPExecutor posts each step as JSON. Relative endpoints are resolved
// against the configured base URL.
type HTTPExecutor struct {
	settings   *settings.ProtocolSettings
	dispatcher *dispatch.Dispatcher
}

var _ StepExecutor = (*HTTPExecutor)(nil)

func NewHTTPExecutor(s *settings.ProtocolSettings, d *dispatch.Dispatcher) *HTTPExecutor {
	return &HTTPExecutor{settings: s, dispatcher: d}
}

func (e *HTTPExecutor) url(endpoint string) string {
	if endpoint == "" {
		endpoint = e.settings.Endpoint
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(e.settings.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (e *HTTPExecutor) Execute(ctx context.Context, endpoint string, req StepRequest) (json.RawMessage, error) {
	body, err := providers.JSONRequest(req, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.dispatcher.Dispatch(ctx, dispatch.Direct(e.url(endpoint)), body,
		dispatch.WithLabel("protocol"),
		dispatch.WithAttemptTimeout(e.settings.StepTimeout),
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 || !json.Valid(resp.Body) {
		// non-JSON answers are passed through as a JSON string
		b, _ := json.Marshal(resp.Text())
		return b, nil
	}
	return resp.Body, nil
}
