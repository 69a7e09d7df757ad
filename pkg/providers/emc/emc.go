// Package emc talks to the remote chat-completion edge network, trying every
// endpoint through each CORS-style proxy before going direct.
package emc

import (
	"context"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/settings"
	"github.com/go-go-golems/relay/pkg/tokens"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const Name = "emc"

type Provider struct {
	settings   *settings.EMCSettings
	dispatcher *dispatch.Dispatcher
	finisher   *providers.Finisher
}

var _ providers.Completer = (*Provider)(nil)

type Option func(*Provider)

func WithFinisher(f *providers.Finisher) Option {
	return func(p *Provider) {
		p.finisher = f
	}
}

func New(s *settings.EMCSettings, d *dispatch.Dispatcher, options ...Option) *Provider {
	p := &Provider{
		settings:   s,
		dispatcher: d,
		finisher:   providers.NewFinisher(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) Complete(ctx context.Context, messages []providers.Message, model string) (string, error) {
	if model == "" {
		model = p.settings.Model
	}

	env := providers.Envelope{
		Model:        model,
		Messages:     messages,
		ExtraHeaders: providers.BearerHeaders(p.settings.APIKey),
	}
	req, err := env.Request(openai.ChatCompletionRequest{
		Model:    env.Model,
		Messages: providers.OpenAIMessages(env.Messages),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("provider", Name).
		Str("model", model).
		Int("messages", len(messages)).
		Int("estimated_tokens", tokens.EstimateChat(model, providers.Contents(messages)...)).
		Int("body_bytes", len(req.Body)).
		Msg("starting completion")

	resp, err := p.dispatcher.Dispatch(ctx, p.settings.Endpoints, req,
		dispatch.WithLabel(Name),
		dispatch.WithAttemptTimeout(p.settings.AttemptTimeout),
		dispatch.WithAttemptsPerCandidate(p.settings.AttemptsPerCandidate),
		dispatch.WithAccept(func(r *dispatch.Response) error {
			_, err := providers.OpenAIContent(r.Body)
			return err
		}),
	)
	if err != nil {
		return "", err
	}

	content, err := providers.OpenAIContent(resp.Body)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("provider", Name).
		Str("candidate", resp.Candidate.String()).
		Int("attempts", resp.Attempts).
		Int("length", len(content)).
		Msg("completion succeeded")

	return p.finisher.Finish(messages, content), nil
}
