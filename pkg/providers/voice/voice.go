// Package voice sends recorded audio to transcription endpoints and can
// chain the transcript into a completion provider.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	Name            = "voice"
	DefaultFilename = "recording.webm"
	formField       = "file"
	invalidAudio    = "No valid audio source provided."
)

var (
	ErrEmptyAudio   = errors.New("audio payload is empty")
	ErrNoTranscript = errors.New("response carried no transcript")
	ErrNoResponder  = errors.New("no completion provider configured for transcripts")
)

// AudioValidationError means an endpoint rejected the audio itself, so
// retrying elsewhere with the same bytes is unlikely to help.
type AudioValidationError struct {
	Cause error
}

func (e *AudioValidationError) Error() string {
	return "audio validation failed: the endpoint could not process the audio format or content: " + e.Cause.Error()
}

func (e *AudioValidationError) Unwrap() error {
	return e.Cause
}

type Result struct {
	Transcript string `json:"transcript" yaml:"transcript"`
	Response   string `json:"response" yaml:"response"`
	MessageID  string `json:"messageId" yaml:"message_id"`
}

type Provider struct {
	settings   *settings.VoiceSettings
	dispatcher *dispatch.Dispatcher
	responder  providers.Completer
}

type Option func(*Provider)

// WithResponder sets the provider that answers transcripts in Process.
func WithResponder(c providers.Completer) Option {
	return func(p *Provider) {
		p.responder = c
	}
}

func New(s *settings.VoiceSettings, d *dispatch.Dispatcher, options ...Option) *Provider {
	p := &Provider{settings: s, dispatcher: d}
	for _, o := range options {
		o(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) request(audio []byte, filename string) (*dispatch.Request, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(formField, filename)
	if err != nil {
		return nil, errors.Wrap(err, "could not create form file")
	}
	if _, err := part.Write(audio); err != nil {
		return nil, errors.Wrap(err, "could not write audio")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finish multipart body")
	}

	headers := map[string]string{"Accept": "application/json"}
	for k, v := range providers.BearerHeaders(p.settings.APIKey) {
		headers[k] = v
	}
	return &dispatch.Request{
		Method:      http.MethodPost,
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
		Headers:     headers,
	}, nil
}

// Transcribe tries each endpoint in order and returns the first transcript.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	req, err := p.request(audio, filename)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("provider", Name).
		Int("audio_bytes", len(audio)).
		Int("endpoints", len(p.settings.Endpoints)).
		Msg("starting transcription")

	resp, err := p.dispatcher.Dispatch(ctx, dispatch.Direct(p.settings.Endpoints...), req,
		dispatch.WithLabel(Name),
		dispatch.WithAttemptTimeout(p.settings.AttemptTimeout),
		dispatch.WithRequireJSON(),
		dispatch.WithAccept(func(r *dispatch.Response) error {
			_, err := ExtractTranscript(r.Body)
			return err
		}),
	)
	if err != nil {
		if rejectedAudio(err) {
			return "", &AudioValidationError{Cause: err}
		}
		return "", err
	}

	transcript, err := ExtractTranscript(resp.Body)
	if err != nil {
		return "", err
	}
	log.Debug().
		Str("provider", Name).
		Int("length", len(transcript)).
		Int("words", len(strings.Fields(transcript))).
		Msg("transcription succeeded")
	return transcript, nil
}

// Process transcribes audio and answers the transcript with the configured
// completion provider.
func (p *Provider) Process(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if p.responder == nil {
		return nil, ErrNoResponder
	}
	transcript, err := p.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, err
	}
	response, err := p.responder.Complete(ctx, []providers.Message{providers.User(transcript)}, "")
	if err != nil {
		return nil, errors.Wrap(err, "could not answer transcript")
	}
	return &Result{
		Transcript: transcript,
		Response:   response,
		MessageID:  uuid.NewString(),
	}, nil
}

// ExtractTranscript reads text, transcript or result at the top level, then
// text, transcript, message, results or label_result under "response".
func ExtractTranscript(body []byte) (string, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", errors.Wrap(err, "could not decode transcription response")
	}
	if s := firstString(doc, "text", "transcript", "result"); s != "" {
		return s, nil
	}
	if nested, ok := doc["response"].(map[string]interface{}); ok {
		if s := firstString(nested, "text", "transcript", "message", "results"); s != "" {
			return s, nil
		}
		switch v := nested["label_result"].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
			}
			if s := strings.Join(parts, " "); s != "" {
				return s, nil
			}
		}
	}
	return "", ErrNoTranscript
}

func firstString(doc map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func rejectedAudio(err error) bool {
	var he *dispatch.HTTPStatusError
	if !errors.As(err, &he) {
		return false
	}
	var body struct {
		Detail struct {
			Error string `json:"error"`
		} `json:"detail"`
	}
	if json.Unmarshal([]byte(he.Body), &body) != nil {
		return false
	}
	return body.Detail.Error == invalidAudio
}
