package lmstudio

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

type server struct {
	*httptest.Server

	mu             sync.Mutex
	modelsStatus   int
	completions    []int
	modelHits      int
	completionHits int
	lastRequest    openai.ChatCompletionRequest
	content        string
}

func newServer(t *testing.T) *server {
	s := &server{modelsStatus: http.StatusOK, content: "ok"}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Path {
	case "/v1/models":
		s.modelHits++
		if s.modelsStatus != http.StatusOK {
			w.WriteHeader(s.modelsStatus)
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"qwen2.5-7b"},{"id":"llama-3-8b"}]}`))
	case "/v1/chat/completions":
		s.completionHits++
		_ = json.NewDecoder(r.Body).Decode(&s.lastRequest)
		if len(s.completions) > 0 {
			status := s.completions[0]
			s.completions = s.completions[1:]
			if status != http.StatusOK {
				http.Error(w, "upstream failure", status)
				return
			}
		}
		b, _ := json.Marshal(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: s.content}}},
		})
		_, _ = w.Write(b)
	default:
		http.NotFound(w, r)
	}
}

func (s *server) settings() *settings.LocalSettings {
	ret := settings.NewLMStudioSettings()
	ret.BaseURL = s.URL + "/v1"
	ret.RetryDelay = time.Millisecond
	ret.AttemptTimeout = time.Second
	ret.ProbeTimeout = time.Second
	return ret
}

func TestCompleteChecksHealthOnceAndSendsTemperature(t *testing.T) {
	srv := newServer(t)
	p := New(srv.settings(), dispatch.NewDispatcher())

	for i := 0; i < 2; i++ {
		out, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "qwen2.5-7b")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.modelHits)
	assert.Equal(t, 2, srv.completionHits)
	assert.Equal(t, "qwen2.5-7b", srv.lastRequest.Model)
	assert.InDelta(t, 0.7, srv.lastRequest.Temperature, 0.0001)
}

func TestCompleteIndexPromptUsesBracketScan(t *testing.T) {
	srv := newServer(t)
	srv.content = "<think>listing tools</think>\nIndex: [{\"name\": \"fs\", \"keywords\": [\"files\"]}]\nDone."
	p := New(srv.settings(), dispatch.NewDispatcher())

	out, err := p.Complete(context.Background(), []providers.Message{
		providers.System("You are an MCP Capability Indexer."),
		providers.User("index"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, `[{"keywords":["files"],"name":"fs"}]`, out)
}

func TestCompleteFailsFastWhenUnhealthy(t *testing.T) {
	srv := newServer(t)
	srv.modelsStatus = http.StatusInternalServerError
	p := New(srv.settings(), dispatch.NewDispatcher())

	_, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.Error(t, err)
	var unavailable *providers.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, Name, unavailable.Provider)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 0, srv.completionHits)
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	srv := newServer(t)
	srv.completions = []int{http.StatusInternalServerError, http.StatusOK}
	p := New(srv.settings(), dispatch.NewDispatcher())

	out, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 2, srv.completionHits)
}

func TestBadGatewayMarksUnhealthy(t *testing.T) {
	srv := newServer(t)
	srv.completions = []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway}
	p := New(srv.settings(), dispatch.NewDispatcher())

	_, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.Error(t, err)

	var exhausted *providers.RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, http.StatusBadGateway, dispatch.StatusCode(err))
	assert.False(t, p.CheckHealth(context.Background()).Healthy)

	_, err = p.Complete(context.Background(), []providers.Message{providers.User("again")}, "")
	var unavailable *providers.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 3, srv.completionHits)
	assert.Equal(t, 1, srv.modelHits)
}

func TestModelsAreCached(t *testing.T) {
	srv := newServer(t)
	p := New(srv.settings(), dispatch.NewDispatcher())

	models, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5-7b", "llama-3-8b"}, models)

	_, err = p.Models(context.Background())
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.modelHits)
	assert.True(t, p.SupportsModel("anything"))
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []dispatch.Notice
}

func (r *noticeRecorder) NotifyExhausted(_ context.Context, n dispatch.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func TestExhaustedCompletionNotifiesOnce(t *testing.T) {
	srv := newServer(t)
	srv.completions = []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError}
	recorder := &noticeRecorder{}
	p := New(srv.settings(), dispatch.NewDispatcher(dispatch.WithNotifier(recorder)))

	_, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.Error(t, err)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.notices, 1)
	assert.Equal(t, Name, recorder.notices[0].Label)
	assert.Equal(t, 3, recorder.notices[0].Attempts)
	assert.Equal(t, 1, recorder.notices[0].Endpoints)
}

func TestCancelledCallerDoesNotMarkUnhealthy(t *testing.T) {
	srv := newServer(t)
	p := New(srv.settings(), dispatch.NewDispatcher())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Complete(ctx, []providers.Message{providers.User("hi")}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	out, err := p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestBadGatewayInvalidatesModels(t *testing.T) {
	srv := newServer(t)
	srv.completions = []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway}
	p := New(srv.settings(), dispatch.NewDispatcher())

	_, err := p.Models(context.Background())
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), []providers.Message{providers.User("hi")}, "")
	require.Error(t, err)

	_, err = p.Models(context.Background())
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	// list, health check, refetch
	assert.Equal(t, 3, srv.modelHits)
}
