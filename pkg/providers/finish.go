package providers

import (
	"github.com/go-go-golems/relay/pkg/normalize"
	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/rs/zerolog/log"
)

// Finisher turns raw completion text into the string handed to callers:
// reasoning segments are stripped, and prompts classified as structured get
// their answer recovered into canonical JSON.
type Finisher struct {
	Normalizer *normalize.Normalizer
	Classifier *Classifier
	// Mode, when set, overrides the classification.
	Mode *recovery.Mode
}

func NewFinisher() *Finisher {
	return &Finisher{
		Normalizer: normalize.New(),
		Classifier: NewClassifier(),
	}
}

func (f *Finisher) Finish(messages []Message, raw string) string {
	text := f.Normalizer.Normalize(raw)

	var classification Classification
	if f.Mode != nil {
		classification = Classification{Structured: true, Mode: *f.Mode}
	} else {
		classification = f.Classifier.Classify(messages)
	}
	if !classification.Structured {
		return text
	}

	res := recovery.Recover(text, recovery.WithMode(classification.Mode))
	if !res.Recovered() {
		log.Warn().Err(res.Err).Msg("returning unrecovered text")
		return text
	}
	return res.Text
}
