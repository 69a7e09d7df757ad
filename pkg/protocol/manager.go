package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StepOutcome describes one completed Step call.
type StepOutcome struct {
	ID        string          `json:"id" yaml:"id"`
	Index     int             `json:"index" yaml:"index"`
	Step      *recovery.Step  `json:"step,omitempty" yaml:"step,omitempty"`
	Status    Status          `json:"status" yaml:"status"`
	Remaining int             `json:"remaining" yaml:"remaining"`
	Result    json.RawMessage `json:"result,omitempty" yaml:"-"`
}

// Manager owns at most one active protocol context. It is constructed
// explicitly and passed to whoever drives the plan.
type Manager struct {
	executor StepExecutor
	newID    func() string
	now      func() time.Time

	mu       sync.Mutex
	contexts map[string]*Context
	active   string
}

type ManagerOption func(*Manager)

func WithIDGenerator(f func() string) ManagerOption {
	return func(m *Manager) {
		m.newID = f
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(executor StepExecutor, options ...ManagerOption) *Manager {
	m := &Manager{
		executor: executor,
		newID:    uuid.NewString,
		now:      time.Now,
		contexts: map[string]*Context{},
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Init creates a new context in status created. It fails when there are no
// keywords or when another context is still active.
func (m *Manager) Init(req InitRequest) (string, error) {
	if len(req.OperationKeywords) == 0 {
		return "", &InvalidContextStateError{Op: "init", Cause: ErrNoKeywords}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != "" {
		c := m.contexts[m.active]
		return "", &InvalidContextStateError{
			Op:     "init",
			ID:     c.ID,
			Status: c.Status,
			Cause:  errors.New("another context is active, reset it first"),
		}
	}

	now := m.now()
	c := &Context{
		ID:                m.newID(),
		SourceContent:     req.SourceContent,
		CleanedJSON:       req.CleanedJSON,
		OperationKeywords: append([]string(nil), req.OperationKeywords...),
		ExecutionPlan:     clone.Clone(req.ExecutionPlan).(recovery.ExecutionPlan),
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.contexts[c.ID] = c
	m.active = c.ID

	log.Debug().
		Str("context", c.ID).
		Strs("keywords", c.OperationKeywords).
		Int("steps", len(c.ExecutionPlan.Steps)).
		Msg("protocol context created")
	return c.ID, nil
}

// Step runs the step at the current index through the executor against
// endpoint. The context only changes once the executor succeeded.
func (m *Manager) Step(ctx context.Context, id string, endpoint string) (*StepOutcome, error) {
	m.mu.Lock()
	c, ok := m.contexts[id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.Wrap(ErrContextNotFound, id)
	}
	if c.Status == StatusFinish {
		m.mu.Unlock()
		return nil, &InvalidContextStateError{
			Op:     "step",
			ID:     id,
			Status: c.Status,
			Cause:  errors.New("plan already finished, reset first"),
		}
	}

	index := c.CurrentStepIndex
	if index >= len(c.ExecutionPlan.Steps) {
		c.Status = StatusFinish
		c.UpdatedAt = m.now()
		m.mu.Unlock()
		log.Debug().Str("context", id).Msg("protocol context has no steps left, finished")
		return &StepOutcome{ID: id, Index: index, Status: StatusFinish}, nil
	}

	req := StepRequest{
		ContextID: id,
		Index:     index,
		Total:     len(c.ExecutionPlan.Steps),
		Keywords:  append([]string(nil), c.OperationKeywords...),
		Step:      clone.Clone(c.ExecutionPlan.Steps[index]).(recovery.Step),
	}
	m.mu.Unlock()

	log.Debug().
		Str("context", id).
		Int("index", index).
		Str("action", req.Step.Action).
		Str("endpoint", endpoint).
		Msg("executing protocol step")

	result, err := m.executor.Execute(ctx, endpoint, req)
	if err != nil {
		return nil, errors.Wrapf(err, "step %d of %s failed", index, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok = m.contexts[id]
	if !ok {
		return nil, errors.Wrapf(ErrContextNotFound, "%s was reset while step %d ran", id, index)
	}
	if c.CurrentStepIndex != index || c.Status == StatusFinish {
		return nil, &InvalidContextStateError{
			Op:     "step",
			ID:     id,
			Status: c.Status,
			Cause:  errors.Errorf("step %d was advanced concurrently", index),
		}
	}

	c.CurrentStepIndex++
	c.Status = StatusRunning
	if c.CurrentStepIndex >= len(c.ExecutionPlan.Steps) {
		c.Status = StatusFinish
	}
	c.UpdatedAt = m.now()

	log.Info().
		Str("context", id).
		Int("index", index).
		Str("status", string(c.Status)).
		Msg("protocol step done")

	return &StepOutcome{
		ID:        id,
		Index:     index,
		Step:      &req.Step,
		Status:    c.Status,
		Remaining: c.Remaining(),
		Result:    result,
	}, nil
}

// Reset discards the active context. It is a no-op without one.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == "" {
		return
	}
	delete(m.contexts, m.active)
	log.Debug().Str("context", m.active).Msg("protocol context reset")
	m.active = ""
}

func (m *Manager) Get(id string) (Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		return Context{}, false
	}
	ret := *c
	ret.OperationKeywords = append([]string(nil), c.OperationKeywords...)
	ret.ExecutionPlan = clone.Clone(c.ExecutionPlan).(recovery.ExecutionPlan)
	return ret, true
}

func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != ""
}
