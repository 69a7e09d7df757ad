package providers

import (
	"strings"

	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/mb0/glob"
	"github.com/rs/zerolog/log"
)

var (
	// DefaultIndexMarkers identify capability-indexing and inverted-index
	// prompts, whose answers go through bracket-scan recovery.
	DefaultIndexMarkers = []string{
		"*You are an MCP Capability Indexer*",
		"*You are an AI indexing assistant*",
	}
	// DefaultStructureMarkers identify prompts asking for an execution plan
	// payload.
	DefaultStructureMarkers = []string{
		"*execution_plan*",
	}
)

// Classification tells the finisher whether and how to recover JSON from a
// response.
type Classification struct {
	Structured bool
	Mode       recovery.Mode
}

// Classifier inspects system messages for role markers. Markers are glob
// patterns matched against the whole message content.
type Classifier struct {
	IndexMarkers     []string
	StructureMarkers []string
}

func NewClassifier() *Classifier {
	return &Classifier{
		IndexMarkers:     append([]string(nil), DefaultIndexMarkers...),
		StructureMarkers: append([]string(nil), DefaultStructureMarkers...),
	}
}

func (c *Classifier) Classify(messages []Message) Classification {
	for _, m := range messages {
		if m.Role != RoleSystem {
			continue
		}
		if matchAny(c.IndexMarkers, m.Content) {
			return Classification{Structured: true, Mode: recovery.ModeIndex}
		}
	}
	for _, m := range messages {
		if m.Role != RoleSystem {
			continue
		}
		if matchAny(c.StructureMarkers, m.Content) {
			return Classification{Structured: true, Mode: recovery.ModeGeneral}
		}
	}
	return Classification{}
}

func matchAny(patterns []string, content string) bool {
	// glob stars stop at path separators, prompts are not paths
	name := strings.ReplaceAll(content, "/", " ")
	for _, p := range patterns {
		matching, err := glob.Match(p, name)
		if err != nil {
			log.Warn().Str("pattern", p).Err(err).Msg("invalid role marker")
			continue
		}
		if matching {
			return true
		}
	}
	return false
}
