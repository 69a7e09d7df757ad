package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeExecutor struct {
	mu       sync.Mutex
	calls    []StepRequest
	fail     error
	onCall   func()
	endpoint string
}

func (f *fakeExecutor) Execute(_ context.Context, endpoint string, req StepRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.endpoint = endpoint
	fail, onCall := f.fail, f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if fail != nil {
		return nil, fail
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func plan(actions ...string) recovery.ExecutionPlan {
	ret := recovery.ExecutionPlan{Steps: []recovery.Step{}}
	for _, a := range actions {
		ret.Steps = append(ret.Steps, recovery.Step{MCP: recovery.MCPRef{"fs"}, Action: a})
	}
	return ret
}

func initRequest(actions ...string) InitRequest {
	return InitRequest{
		SourceContent:     "source",
		CleanedJSON:       `{"response":"x"}`,
		OperationKeywords: []string{"goal"},
		ExecutionPlan:     plan(actions...),
	}
}

func TestInitRequiresKeywords(t *testing.T) {
	m := NewManager(&fakeExecutor{})
	req := initRequest("read")
	req.OperationKeywords = nil

	id, err := m.Init(req)
	assert.Empty(t, id)
	var invalid *InvalidContextStateError
	require.True(t, errors.As(err, &invalid))
	assert.ErrorIs(t, err, ErrNoKeywords)

	_, ok := m.Active()
	assert.False(t, ok)
}

func TestInitWhileActive(t *testing.T) {
	m := NewManager(&fakeExecutor{})
	id, err := m.Init(initRequest("read"))
	require.NoError(t, err)

	_, err = m.Init(initRequest("write"))
	var invalid *InvalidContextStateError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, id, invalid.ID)
	assert.Equal(t, StatusCreated, invalid.Status)
}

func TestStepLifecycle(t *testing.T) {
	exec := &fakeExecutor{}
	m := NewManager(exec)
	id, err := m.Init(initRequest("read", "summarize"))
	require.NoError(t, err)

	c, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCreated, c.Status)
	assert.Equal(t, 0, c.CurrentStepIndex)

	out, err := m.Step(context.Background(), id, "/api/aio/protocol")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Index)
	assert.Equal(t, StatusRunning, out.Status)
	assert.Equal(t, 1, out.Remaining)
	assert.Equal(t, "read", out.Step.Action)
	assert.JSONEq(t, `{"ok":true}`, string(out.Result))

	out, err = m.Step(context.Background(), id, "/api/aio/protocol")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Index)
	assert.Equal(t, StatusFinish, out.Status)
	assert.Equal(t, 0, out.Remaining)

	c, _ = m.Get(id)
	assert.Equal(t, StatusFinish, c.Status)
	assert.Equal(t, 2, c.CurrentStepIndex)

	_, err = m.Step(context.Background(), id, "/api/aio/protocol")
	var invalid *InvalidContextStateError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, StatusFinish, invalid.Status)

	after, _ := m.Get(id)
	assert.Equal(t, c, after)

	require.Len(t, exec.calls, 2)
	assert.Equal(t, 2, exec.calls[1].Total)
	assert.Equal(t, []string{"goal"}, exec.calls[1].Keywords)
	assert.Equal(t, "/api/aio/protocol", exec.endpoint)
}

func TestStepEmptyPlanFinishes(t *testing.T) {
	exec := &fakeExecutor{}
	m := NewManager(exec)
	id, err := m.Init(initRequest())
	require.NoError(t, err)

	out, err := m.Step(context.Background(), id, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFinish, out.Status)
	assert.Nil(t, out.Step)
	assert.Empty(t, exec.calls)
}

func TestStepFailureLeavesStateUnchanged(t *testing.T) {
	exec := &fakeExecutor{fail: errors.New("executor down")}
	m := NewManager(exec)
	id, err := m.Init(initRequest("read"))
	require.NoError(t, err)

	_, err = m.Step(context.Background(), id, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor down")

	c, _ := m.Get(id)
	assert.Equal(t, StatusCreated, c.Status)
	assert.Equal(t, 0, c.CurrentStepIndex)
}

func TestStepUnknownID(t *testing.T) {
	m := NewManager(&fakeExecutor{})
	_, err := m.Step(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestResetDuringStep(t *testing.T) {
	exec := &fakeExecutor{}
	m := NewManager(exec)
	id, err := m.Init(initRequest("read"))
	require.NoError(t, err)
	exec.onCall = m.Reset

	_, err = m.Step(context.Background(), id, "")
	assert.ErrorIs(t, err, ErrContextNotFound)
	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestResetThenInitYieldsNewID(t *testing.T) {
	m := NewManager(&fakeExecutor{})
	m.Reset()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id, err := m.Init(initRequest("read"))
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true

		active, ok := m.Active()
		require.True(t, ok)
		assert.Equal(t, id, active)

		m.Reset()
		m.Reset()
		_, ok = m.Get(id)
		assert.False(t, ok)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager(&fakeExecutor{})
	id, err := m.Init(initRequest("read"))
	require.NoError(t, err)

	c, _ := m.Get(id)
	c.ExecutionPlan.Steps[0].Action = "changed"
	c.OperationKeywords[0] = "changed"

	again, _ := m.Get(id)
	assert.Equal(t, "read", again.ExecutionPlan.Steps[0].Action)
	assert.Equal(t, []string{"goal"}, again.OperationKeywords)
}

func TestKeywordsFromPayload(t *testing.T) {
	p, _ := recovery.ParsePayload(`{
		"intent_analysis": {"request_understanding": {"primary_goal": " list files "}},
		"execution_plan": {"steps": [
			{"mcp": "fs", "action": "list_directory"},
			{"mcp": ["fs"], "action": ""},
			{"mcp": "fs", "action": "read_file"}
		]},
		"response": "ok"
	}`)
	assert.Equal(t, []string{"list files", "list_directory", "read_file"}, KeywordsFromPayload(p))
	assert.Nil(t, KeywordsFromPayload(nil))

	req := NewInitRequest("src", "{}", p)
	assert.Len(t, req.ExecutionPlan.Steps, 3)
	assert.Equal(t, "src", req.SourceContent)
}
