// Package recovery turns model output that was meant to be JSON into JSON.
//
// Recover runs a fixed cascade of increasingly permissive stages and stops at
// the first one that yields a structure. Successful results are re-serialized
// in a canonical form. When nothing works the original text is handed back
// unchanged together with a *RecoveryExhaustedError, so callers can always
// fall through to treating the output as plain text.
package recovery

import (
	"strings"

	"github.com/go-go-golems/relay/pkg/helpers"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of a recovery run.
type Result struct {
	// Text is the canonical JSON on success and the untouched input otherwise.
	Text string
	// Value is the decoded structure, nil on failure.
	Value interface{}
	// Stage is the stage that succeeded, StageNone on failure.
	Stage Stage
	// Err is a *RecoveryExhaustedError on failure.
	Err error
}

func (r Result) Recovered() bool {
	return r.Stage != StageNone && r.Err == nil
}

// Structured reports whether the recovered value is an object or array.
func (r Result) Structured() bool {
	switch r.Value.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

type stageFunc struct {
	stage Stage
	// transform feeds the rewritten text to this and every later stage.
	transform func(string) string
	parse     func(string) (interface{}, error)
	// from makes the stage parse the text that was fed into an earlier
	// stage instead of the cumulative text.
	from Stage
}

var cascade = []stageFunc{
	{stage: StageDirect, transform: identity, parse: parseStrict},
	{stage: StageCodeBlock, transform: extractCodeBlock, parse: parseStrict},
	{stage: StageCleanup, transform: cleanup, parse: parseStrict},
	{stage: StageRepair, transform: repairStructure, parse: parseStrict},
	{stage: StageSafeParse, transform: identity, parse: safeParse, from: StageRepair},
	{stage: StageBackslash, transform: repairBackslashes, parse: parseStrict},
	{stage: StageAggressive, transform: aggressiveRepair, parse: parseStrict},
}

func identity(s string) string { return s }

// cascadeStages lists the general cascade in execution order.
func cascadeStages() []Stage {
	ret := make([]Stage, 0, len(cascade))
	for _, sf := range cascade {
		ret = append(ret, sf.stage)
	}
	return ret
}

type options struct {
	mode Mode
}

type Option func(*options)

func WithMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// Recover runs the recovery cascade over text. It never panics and never
// returns an empty Text for non-empty input.
func Recover(text string, opts ...Option) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("json recovery panicked, keeping original text")
			res = Result{Text: text, Err: &RecoveryExhaustedError{Length: len(text), Last: errors.Errorf("panic: %v", r)}}
		}
	}()

	o := &options{mode: ModeGeneral}
	for _, opt := range opts {
		opt(o)
	}

	var tried []Stage
	var lastErr error
	attempt := func(stage Stage, candidate string, parse func(string) (interface{}, error)) func() helpers.Result[Result] {
		return func() helpers.Result[Result] {
			tried = append(tried, stage)
			v, err := parse(candidate)
			if err != nil {
				lastErr = err
				return helpers.NewErrorResult[Result](err)
			}
			canonical, err := Canonical(v)
			if err != nil {
				lastErr = err
				return helpers.NewErrorResult[Result](err)
			}
			return helpers.NewValueResult(Result{Text: canonical, Value: v, Stage: stage})
		}
	}

	general := func() helpers.Result[Result] {
		current := text
		inputs := map[Stage]string{}
		attempts := make([]func() helpers.Result[Result], 0, len(cascade))
		for _, sf := range cascade {
			sf := sf
			attempts = append(attempts, func() helpers.Result[Result] {
				inputs[sf.stage] = current
				current = sf.transform(current)
				candidate := current
				if sf.from != StageNone {
					candidate = inputs[sf.from]
				}
				return attempt(sf.stage, candidate, sf.parse)()
			})
		}
		return helpers.FirstOk(attempts...)
	}

	var outcome helpers.Result[Result]
	if o.mode == ModeIndex {
		outcome = attempt(StageBracketScan, text, bracketScan)().OrElse(general)
	} else {
		outcome = general()
	}

	if recovered, err := outcome.Value(); err == nil {
		if recovered.Stage != StageDirect {
			log.Debug().
				Str("stage", recovered.Stage.String()).
				Str("mode", o.mode.String()).
				Int("length", len(text)).
				Msg("recovered json from model output")
		}
		return recovered
	}

	exhausted := &RecoveryExhaustedError{
		Mode:   o.mode,
		Tried:  tried,
		Last:   lastErr,
		Length: len(text),
	}
	log.Debug().Err(exhausted).Msg("json recovery exhausted, keeping original text")
	return Result{Text: text, Stage: StageNone, Err: exhausted}
}

// RecoverValue is a convenience wrapper that returns the decoded structure or
// the recovery error.
func RecoverValue(text string, opts ...Option) (interface{}, error) {
	res := Recover(text, opts...)
	if !res.Recovered() {
		return nil, res.Err
	}
	return res.Value, nil
}

// bracketScan takes the span from the first opening bracket to the last
// matching closer of the same kind and parses it strictly.
func bracketScan(text string) (interface{}, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, errors.New("no opening bracket")
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return nil, errors.Errorf("no closing %s after position %d", closer, start)
	}
	return parseStrict(text[start : end+1])
}
