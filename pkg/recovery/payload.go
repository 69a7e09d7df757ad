package recovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NoResponse is used when neither the payload nor the source text carries a
// response.
const NoResponse = "No response available"

// Payload is the structured object a model is asked to answer with. Decoding
// always fills every field, so consumers can walk it without nil checks.
type Payload struct {
	IntentAnalysis map[string]interface{} `json:"intent_analysis" yaml:"intent_analysis"`
	ExecutionPlan  ExecutionPlan          `json:"execution_plan" yaml:"execution_plan"`
	Response       string                 `json:"response" yaml:"response"`
}

type ExecutionPlan struct {
	Steps []Step `json:"steps" yaml:"steps"`
}

type Step struct {
	MCP          MCPRef                 `json:"mcp" yaml:"mcp"`
	Action       string                 `json:"action" yaml:"action"`
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// MCPRef names the capability servers a step runs against. Models emit either
// a single name or a list.
type MCPRef []string

func (m *MCPRef) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*m = MCPRef{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.Wrap(err, "mcp must be a string or a list of strings")
	}
	*m = many
	return nil
}

func (m MCPRef) MarshalJSON() ([]byte, error) {
	if len(m) == 1 {
		return json.Marshal(m[0])
	}
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(m))
}

func (m MCPRef) MarshalYAML() (interface{}, error) {
	if len(m) == 1 {
		return m[0], nil
	}
	if m == nil {
		return []string{}, nil
	}
	return []string(m), nil
}

func (m MCPRef) String() string {
	return strings.Join(m, ",")
}

// PrimaryGoal returns intent_analysis.request_understanding.primary_goal, or
// the empty string.
func (p *Payload) PrimaryGoal() string {
	ru, ok := p.IntentAnalysis["request_understanding"].(map[string]interface{})
	if !ok {
		return ""
	}
	goal, _ := ru["primary_goal"].(string)
	return strings.TrimSpace(goal)
}

// DefaultPayload returns an empty payload whose response falls back to
// source.
func DefaultPayload(source string) *Payload {
	return &Payload{
		IntentAnalysis: map[string]interface{}{},
		ExecutionPlan:  ExecutionPlan{Steps: []Step{}},
		Response:       responseFallback(source),
	}
}

func responseFallback(source string) string {
	if strings.TrimSpace(source) == "" {
		return NoResponse
	}
	return source
}

// DecodePayload decodes a JSON document into a Payload. Top-level keys are
// matched case-insensitively by their snake_case form and step keys by their
// lowerCamel form. An absent response falls back to source.
func DecodePayload(doc string, source string) (*Payload, error) {
	v, err := parseStrict(doc)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode payload")
	}
	root, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("payload must be an object, got %T", v)
	}

	root = rekey(root, strcase.ToSnake)
	p := DefaultPayload(source)

	if ia, ok := root["intent_analysis"].(map[string]interface{}); ok {
		p.IntentAnalysis = ia
	}

	switch plan := root["execution_plan"].(type) {
	case map[string]interface{}:
		plan = rekey(plan, strcase.ToSnake)
		if steps, ok := plan["steps"].([]interface{}); ok {
			p.ExecutionPlan.Steps = decodeSteps(steps)
		}
	case []interface{}:
		p.ExecutionPlan.Steps = decodeSteps(plan)
	}

	switch r := root["response"].(type) {
	case nil:
	case string:
		if strings.TrimSpace(r) != "" {
			p.Response = r
		}
	default:
		if s, err := Canonical(r); err == nil {
			p.Response = s
		}
	}

	return p, nil
}

func decodeSteps(raw []interface{}) []Step {
	steps := make([]Step, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			log.Debug().Int("index", i).Msgf("skipping plan step of type %T", item)
			continue
		}
		m = rekey(m, strcase.ToLowerCamel)

		var step Step
		switch mcp := m["mcp"].(type) {
		case string:
			step.MCP = MCPRef{mcp}
		case []interface{}:
			for _, name := range mcp {
				step.MCP = append(step.MCP, stringify(name))
			}
		}
		if step.MCP == nil {
			step.MCP = MCPRef{}
		}
		step.Action = stringify(m["action"])
		if schema, ok := m["inputSchema"].(map[string]interface{}); ok {
			step.InputSchema = schema
		}
		if deps, ok := m["dependencies"].([]interface{}); ok {
			for _, d := range deps {
				step.Dependencies = append(step.Dependencies, stringify(d))
			}
		}
		steps = append(steps, step)
	}
	return steps
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func rekey(m map[string]interface{}, f func(string) string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		nk := f(k)
		if _, exists := out[nk]; exists && nk != k {
			continue
		}
		out[nk] = v
	}
	return out
}

// ParsePayload recovers text and decodes the result. It never fails. Text
// that does not recover into a payload object is read for markdown sections,
// then wrapped into a minimal payload whose response is the text itself.
func ParsePayload(text string, opts ...Option) (*Payload, Result) {
	res := Recover(text, opts...)
	if res.Recovered() {
		p, err := DecodePayload(res.Text, text)
		if err == nil && !p.empty(text) {
			return p, res
		}
		if err != nil {
			log.Debug().Err(err).Msg("recovered json is not a payload")
		}
	}
	if p, ok := sectionPayload(text, opts...); ok {
		return p, res
	}
	if strings.TrimSpace(text) == "" {
		return DefaultPayload(text), res
	}
	return MinimalPayload(text), res
}

// empty reports whether decoding found none of the payload fields.
func (p *Payload) empty(source string) bool {
	return len(p.IntentAnalysis) == 0 &&
		len(p.ExecutionPlan.Steps) == 0 &&
		p.Response == responseFallback(source)
}
