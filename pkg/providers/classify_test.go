package providers

import (
	"context"
	"testing"

	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/stretchr/testify/assert"
)

func TestClassifier(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		messages []Message
		want     Classification
	}{
		{
			name:     "plain chat",
			messages: []Message{System("You are a helpful assistant."), User("hi")},
			want:     Classification{},
		},
		{
			name:     "capability indexer",
			messages: []Message{System("You are an MCP Capability Indexer. Reply with JSON only."), User("index this")},
			want:     Classification{Structured: true, Mode: recovery.ModeIndex},
		},
		{
			name:     "inverted index with paths",
			messages: []Message{System("You are an AI indexing assistant for /srv/mcp/servers."), User("x")},
			want:     Classification{Structured: true, Mode: recovery.ModeIndex},
		},
		{
			name:     "execution plan prompt",
			messages: []Message{System(`Answer with {"intent_analysis": {}, "execution_plan": {"steps": []}, "response": ""}`)},
			want:     Classification{Structured: true, Mode: recovery.ModeGeneral},
		},
		{
			name:     "markers in user messages are ignored",
			messages: []Message{User("You are an MCP Capability Indexer")},
			want:     Classification{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.messages))
		})
	}
}

func TestFinisher(t *testing.T) {
	f := NewFinisher()

	plain := []Message{System("You are a helpful assistant.")}
	assert.Equal(t, "Hello there.", f.Finish(plain, "<think>greet</think>\n Hello there. "))
	assert.Equal(t, `{"a": 1,}`, f.Finish(plain, `{"a": 1,}`))

	index := []Message{System("You are an MCP Capability Indexer")}
	assert.Equal(t, `[{"name":"fs"}]`, f.Finish(index, "<think>hmm</think>Here: [{\"name\": \"fs\"}] done"))
	assert.Equal(t, "no json at all", f.Finish(index, "no json at all"))

	mode := recovery.ModeGeneral
	forced := &Finisher{Normalizer: f.Normalizer, Classifier: f.Classifier, Mode: &mode}
	assert.Equal(t, `{"a":1}`, forced.Finish(plain, `{"a": 1,}`))
}

type staticChecker struct {
	name  string
	state HealthState
}

func (s staticChecker) Name() string { return s.name }

func (s staticChecker) CheckHealth(ctx context.Context) HealthState { return s.state }

func TestCheckAllProviders(t *testing.T) {
	states := ProbeAll(context.Background(),
		staticChecker{name: "voice", state: HealthState{Healthy: false, LastError: "down"}},
		staticChecker{name: "emc", state: HealthState{Provider: "emc", Healthy: true}},
	)
	assert.Len(t, states, 2)
	assert.Equal(t, "emc", states[0].Provider)
	assert.True(t, states[0].Healthy)
	assert.Equal(t, "voice", states[1].Provider)
	assert.Equal(t, "down", states[1].LastError)

	assert.Empty(t, ProbeAll(context.Background()))
}
