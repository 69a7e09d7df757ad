// Package normalize strips reasoning segments that local models emit around
// their actual answer.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	DefaultOpenTag  = "<think>"
	DefaultCloseTag = "</think>"
)

type Normalizer struct {
	openTag  string
	closeTag string
	pattern  *regexp.Regexp
}

type Option func(*Normalizer)

// WithTags replaces the default <think></think> delimiters.
func WithTags(open, close_ string) Option {
	return func(n *Normalizer) {
		if open != "" && close_ != "" {
			n.openTag = open
			n.closeTag = close_
		}
	}
}

func New(options ...Option) *Normalizer {
	ret := &Normalizer{
		openTag:  DefaultOpenTag,
		closeTag: DefaultCloseTag,
	}
	for _, o := range options {
		o(ret)
	}
	ret.pattern = regexp.MustCompile(
		`(?s)` + regexp.QuoteMeta(ret.openTag) + `(.*?)` + regexp.QuoteMeta(ret.closeTag),
	)
	return ret
}

var defaultNormalizer = New()

// Normalize removes every <think>...</think> segment and trims the result.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize removes all delimited segments and surrounding whitespace.
// Removal repeats until nothing changes, so that a pair formed by
// concatenating the remains of a removed segment is stripped as well and
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	current := text
	for {
		for _, reasoning := range n.Reasoning(current) {
			if reasoning != "" {
				log.Debug().
					Int("length", len(reasoning)).
					Str("reasoning", truncate(reasoning, 512)).
					Msg("Dropping reasoning segment")
			}
		}
		next := strings.TrimSpace(n.pattern.ReplaceAllString(current, ""))
		if next == current {
			return next
		}
		current = next
	}
}

// Reasoning returns the content of the removed segments, in order.
func (n *Normalizer) Reasoning(text string) []string {
	ret := []string{}
	for _, m := range n.pattern.FindAllStringSubmatch(text, -1) {
		ret = append(ret, strings.TrimSpace(m[1]))
	}
	return ret
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
