// Package protocol tracks the execution of one multi-step plan taken from a
// recovered payload.
package protocol

import (
	"strings"
	"time"

	"github.com/go-go-golems/relay/pkg/recovery"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusFinish  Status = "finish"
)

// Context is a snapshot of one execution. Values returned by the Manager are
// copies; mutating them has no effect.
type Context struct {
	ID                string                 `json:"id" yaml:"id"`
	SourceContent     string                 `json:"sourceContent" yaml:"source_content"`
	CleanedJSON       string                 `json:"cleanedJson,omitempty" yaml:"cleaned_json,omitempty"`
	OperationKeywords []string               `json:"operationKeywords" yaml:"operation_keywords"`
	ExecutionPlan     recovery.ExecutionPlan `json:"executionPlan" yaml:"execution_plan"`
	Status            Status                 `json:"status" yaml:"status"`
	CurrentStepIndex  int                    `json:"currentStepIndex" yaml:"current_step_index"`
	CreatedAt         time.Time              `json:"createdAt" yaml:"created_at"`
	UpdatedAt         time.Time              `json:"updatedAt" yaml:"updated_at"`
}

func (c *Context) Remaining() int {
	return len(c.ExecutionPlan.Steps) - c.CurrentStepIndex
}

type InitRequest struct {
	SourceContent     string
	CleanedJSON       string
	OperationKeywords []string
	ExecutionPlan     recovery.ExecutionPlan
}

// NewInitRequest builds an init request from a recovered payload. cleaned is
// the canonical JSON the payload was decoded from, if any.
func NewInitRequest(source string, cleaned string, p *recovery.Payload) InitRequest {
	return InitRequest{
		SourceContent:     source,
		CleanedJSON:       cleaned,
		OperationKeywords: KeywordsFromPayload(p),
		ExecutionPlan:     p.ExecutionPlan,
	}
}

// KeywordsFromPayload collects the primary goal followed by each step's
// action, skipping blanks.
func KeywordsFromPayload(p *recovery.Payload) []string {
	if p == nil {
		return nil
	}
	ret := []string{}
	if goal := p.PrimaryGoal(); goal != "" {
		ret = append(ret, goal)
	}
	for _, s := range p.ExecutionPlan.Steps {
		if action := strings.TrimSpace(s.Action); action != "" {
			ret = append(ret, action)
		}
	}
	return ret
}
