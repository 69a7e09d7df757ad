package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNormalizeStripsThinkSegments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "  hello  ", "hello"},
		{"single", "<think>pondering</think>\n{\"a\":1}", `{"a":1}`},
		{"multiline", "<think>\nline 1\nline 2\n</think>\n\nanswer", "answer"},
		{"multiple", "a<think>x</think>b<think>y</think>c", "abc"},
		{"unclosed is kept", "<think>no end", "<think>no end"},
		{"nested remains", "<thi<think>x</think>nk>y</think>z", "z"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeCustomTags(t *testing.T) {
	n := New(WithTags("<reasoning>", "</reasoning>"))
	assert.Equal(t, "done", n.Normalize("<reasoning>hmm</reasoning> done"))
	assert.Equal(t, "<think>x</think>", n.Normalize("<think>x</think>"))
}

func TestReasoningReturnsSegments(t *testing.T) {
	n := New()
	assert.Equal(t, []string{"one", "two"}, n.Reasoning("<think> one </think>a<think>two</think>"))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncate(s, 5)
	assert.Equal(t, "éé...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

func TestNormalizeIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	fragments := gen.SliceOf(gen.OneGenOf(
		gen.AlphaString(),
		gen.Const("<think>"),
		gen.Const("</think>"),
		gen.Const(" "),
		gen.Const("\n"),
		gen.Const("<thi"),
		gen.Const("nk>"),
	))

	properties.Property("normalize is idempotent", prop.ForAll(
		func(parts []string) bool {
			x := strings.Join(parts, "")
			once := Normalize(x)
			return Normalize(once) == once
		},
		fragments,
	))

	properties.Property("normalized text has no complete segment", prop.ForAll(
		func(parts []string) bool {
			once := Normalize(strings.Join(parts, ""))
			open := strings.Index(once, DefaultOpenTag)
			if open < 0 {
				return true
			}
			return !strings.Contains(once[open:], DefaultCloseTag)
		},
		fragments,
	))

	properties.TestingRun(t)
}
