package recovery

import (
	"regexp"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	sectionAnalysis = "analysis"
	sectionPlan     = "plan"
	sectionResponse = "response"
)

var sectionMarkers = map[string]string{
	sectionAnalysis: "**Analysis:**",
	sectionPlan:     "**Execution Plan:**",
	sectionResponse: "**Response:**",
}

// Goals assigned to prose that carries no structure.
const (
	GoalGreeting    = "greeting"
	GoalCheckIn     = "check_in"
	GoalGeneralChat = "general_chat"
)

var (
	greetingRe = regexp.MustCompile(`(?i)\b(hello|hi there|hey|greetings|welcome)\b`)
	checkInRe  = regexp.MustCompile(`(?i)\b(how can i assist|how can i help|checking in|what do you need)\b`)
	goalLineRe = regexp.MustCompile(`(?im)^[\s*_-]*(?:primary goal|goal)[*_]*\s*:[*_]*\s*(.+?)\s*$`)
)

// GuessGoal classifies free text as a greeting, a check-in or general chat.
func GuessGoal(content string) string {
	switch {
	case greetingRe.MatchString(content):
		return GoalGreeting
	case checkInRe.MatchString(content):
		return GoalCheckIn
	default:
		return GoalGeneralChat
	}
}

// MinimalPayload wraps prose into a payload with a guessed primary goal.
func MinimalPayload(content string) *Payload {
	p := DefaultPayload(content)
	p.IntentAnalysis = map[string]interface{}{
		"request_understanding": map[string]interface{}{
			"primary_goal": GuessGoal(content),
		},
		"text_representation": content,
	}
	return p
}

// markdownSections splits text on the bold section headers models use when
// they answer in markdown instead of JSON.
func markdownSections(s string) (map[string]string, bool) {
	type mark struct {
		name       string
		start, end int
	}
	var marks []mark
	for name, marker := range sectionMarkers {
		if i := strings.Index(s, marker); i >= 0 {
			marks = append(marks, mark{name: name, start: i, end: i + len(marker)})
		}
	}
	if len(marks) == 0 {
		return nil, false
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].start < marks[j].start })

	sections := make(map[string]string, len(marks))
	for i, m := range marks {
		stop := len(s)
		if i+1 < len(marks) {
			stop = marks[i+1].start
		}
		sections[m.name] = strings.TrimSpace(s[m.end:stop])
	}
	return sections, true
}

// sectionPayload builds a payload from markdown sections. Each section body
// goes through recovery on its own, and falls back to prose handling.
func sectionPayload(s string, opts ...Option) (*Payload, bool) {
	sections, ok := markdownSections(s)
	if !ok {
		return nil, false
	}
	p := DefaultPayload(s)

	if body, ok := sections[sectionAnalysis]; ok {
		p.IntentAnalysis = sectionAnalysisMap(body, opts...)
	}
	if body, ok := sections[sectionPlan]; ok {
		p.ExecutionPlan.Steps = sectionSteps(body, opts...)
	}
	if body := sections[sectionResponse]; body != "" {
		p.Response = body
	}
	return p, true
}

func sectionAnalysisMap(body string, opts ...Option) map[string]interface{} {
	if res := Recover(body, opts...); res.Recovered() {
		if m, ok := res.Value.(map[string]interface{}); ok {
			return m
		}
	}
	goal := GuessGoal(body)
	if m := goalLineRe.FindStringSubmatch(body); m != nil {
		goal = strings.Trim(m[1], "*_ ")
	}
	return map[string]interface{}{
		"request_understanding": map[string]interface{}{"primary_goal": goal},
		"text_representation":   body,
	}
}

func sectionSteps(body string, opts ...Option) []Step {
	if res := Recover(body, opts...); res.Recovered() {
		var raw []interface{}
		switch v := res.Value.(type) {
		case []interface{}:
			raw = v
		case map[string]interface{}:
			raw, _ = rekey(v, strcase.ToSnake)["steps"].([]interface{})
		}
		if steps := decodeSteps(raw); len(steps) > 0 {
			return steps
		}
	}
	return listSteps(body)
}

// listSteps turns each markdown list item into a step. Code spans in an item
// name its capability servers.
func listSteps(body string) []Step {
	source := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	steps := []Step{}
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || node.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		step := Step{MCP: MCPRef{}}
		var action strings.Builder
		_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			switch v := n.(type) {
			case *ast.List:
				// nested items become their own steps
				return ast.WalkSkipChildren, nil
			case *ast.CodeSpan:
				name := strings.TrimSpace(string(v.Text(source)))
				if name != "" {
					step.MCP = append(step.MCP, name)
				}
				action.Write(v.Text(source))
				return ast.WalkSkipChildren, nil
			case *ast.Text:
				action.Write(v.Segment.Value(source))
				if v.SoftLineBreak() {
					action.WriteByte(' ')
				}
			}
			return ast.WalkContinue, nil
		})
		step.Action = strings.TrimSpace(action.String())
		if step.Action != "" {
			steps = append(steps, step)
		}
		return ast.WalkContinue, nil
	})
	return steps
}
