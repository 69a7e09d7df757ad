package emc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/settings"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) string {
	b, _ := json.Marshal(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
	})
	return string(b)
}

type recorded struct {
	auth string
	req  openai.ChatCompletionRequest
}

func newServer(t *testing.T, handler func(w http.ResponseWriter)) (*httptest.Server, *[]recorded) {
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		calls = append(calls, recorded{auth: r.Header.Get("Authorization"), req: req})
		mu.Unlock()
		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testSettings(urls ...string) *settings.EMCSettings {
	s := settings.NewEMCSettings()
	s.Endpoints = dispatch.Direct(urls...)
	s.APIKey = "test-key"
	s.AttemptTimeout = time.Second
	return s
}

func TestCompleteFallsBackPastEmptyContent(t *testing.T) {
	empty, emptyCalls := newServer(t, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	good, goodCalls := newServer(t, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(completion("  <think>pondering</think>\n  Hello!  ")))
	})

	p := New(testSettings(empty.URL, good.URL), dispatch.NewDispatcher())
	out, err := p.Complete(context.Background(), []providers.Message{
		providers.System("You are a helpful assistant."),
		providers.User("hi"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", out)

	require.Len(t, *emptyCalls, 1)
	require.Len(t, *goodCalls, 1)
	call := (*goodCalls)[0]
	assert.Equal(t, "Bearer test-key", call.auth)
	assert.Equal(t, settings.DefaultEMCModel, call.req.Model)
	assert.False(t, call.req.Stream)
	require.Len(t, call.req.Messages, 2)
	assert.Equal(t, "system", call.req.Messages[0].Role)
	assert.Equal(t, "hi", call.req.Messages[1].Content)
}

func TestCompleteRecoversStructuredAnswers(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(completion("```json\n{\"response\": \"hi\", \"execution_plan\": {\"steps\": [],}}\n```")))
	})

	p := New(testSettings(srv.URL), dispatch.NewDispatcher())
	out, err := p.Complete(context.Background(), []providers.Message{
		providers.System(`Reply with {"intent_analysis": {}, "execution_plan": {"steps": []}, "response": ""}`),
		providers.User("hello"),
	}, "custom-model")
	require.NoError(t, err)
	assert.Equal(t, `{"execution_plan":{"steps":[]},"response":"hi"}`, out)
}

func TestCompleteAllEndpointsFail(t *testing.T) {
	a, _ := newServer(t, func(w http.ResponseWriter) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	})
	b, _ := newServer(t, func(w http.ResponseWriter) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	})

	p := New(testSettings(a.URL, b.URL), dispatch.NewDispatcher())
	_, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.Error(t, err)

	var exhausted *dispatch.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, Name, exhausted.Label)
	assert.Equal(t, http.StatusUnauthorized, dispatch.StatusCode(err))
}
