// Package lmstudio adapts a local OpenAI-compatible server.
package lmstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/settings"
	"github.com/go-go-golems/relay/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const Name = "lmstudio"

type Provider struct {
	settings   *settings.LocalSettings
	dispatcher *dispatch.Dispatcher
	// probes go through their own dispatcher so they never emit failure
	// notices
	probes   *dispatch.Dispatcher
	health   *providers.HealthGate
	models   *providers.ModelCache
	retrier  providers.Retrier
	finisher *providers.Finisher
}

var (
	_ providers.Completer     = (*Provider)(nil)
	_ providers.ModelLister   = (*Provider)(nil)
	_ providers.HealthChecker = (*Provider)(nil)
)

type Option func(*Provider)

func WithFinisher(f *providers.Finisher) Option {
	return func(p *Provider) {
		p.finisher = f
	}
}

func WithHealthOptions(options ...providers.HealthGateOption) Option {
	return func(p *Provider) {
		p.health = providers.NewHealthGate(Name, p.probe, append(p.healthOptions(), options...)...)
	}
}

func New(s *settings.LocalSettings, d *dispatch.Dispatcher, options ...Option) *Provider {
	p := &Provider{
		settings:   s,
		dispatcher: d,
		probes:     dispatch.NewDispatcher(dispatch.WithHTTPClient(d.HTTPClient())),
		retrier: providers.Retrier{
			Name:      Name,
			Attempts:  s.Retries,
			Delay:     s.RetryDelay,
			Notifier:  d.Notifier(),
			Endpoints: 1,
		},
		finisher: providers.NewFinisher(),
	}
	p.health = providers.NewHealthGate(Name, p.probe, p.healthOptions()...)
	p.models = providers.NewModelCache(p.fetchModels, s.ModelCacheTTL)
	for _, o := range options {
		o(p)
	}
	return p
}

func (p *Provider) healthOptions() []providers.HealthGateOption {
	return []providers.HealthGateOption{
		providers.WithHealthInterval(p.settings.HealthInterval),
		providers.WithProbeTimeout(p.settings.ProbeTimeout),
	}
}

func (p *Provider) Name() string {
	return Name
}

// SupportsModel accepts any model name; the server decides.
func (p *Provider) SupportsModel(string) bool {
	return true
}

func (p *Provider) url(path string) string {
	return strings.TrimRight(p.settings.BaseURL, "/") + path
}

func (p *Provider) get(ctx context.Context, path string) (*dispatch.Response, error) {
	return p.probes.Dispatch(ctx, dispatch.Direct(p.url(path)), &dispatch.Request{
		Method:      http.MethodGet,
		ContentType: "application/json",
		Headers:     providers.BearerHeaders(p.settings.APIKey),
	}, dispatch.WithLabel(Name+" "+path), dispatch.WithRequireJSON())
}

func (p *Provider) probe(ctx context.Context) error {
	_, err := p.get(ctx, "/models")
	return err
}

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	resp, err := p.get(ctx, "/models")
	if err != nil {
		return nil, err
	}
	var list openai.ModelsList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, errors.Wrap(err, "could not decode model list")
	}
	ret := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ret = append(ret, m.ID)
	}
	return ret, nil
}

func (p *Provider) Models(ctx context.Context) ([]string, error) {
	return p.models.Models(ctx)
}

func (p *Provider) CheckHealth(ctx context.Context) providers.HealthState {
	return p.health.Check(ctx)
}

func (p *Provider) Complete(ctx context.Context, messages []providers.Message, model string) (string, error) {
	if err := p.health.Ensure(ctx); err != nil {
		return "", err
	}
	if model == "" {
		model = p.settings.Model
	}

	env := providers.Envelope{
		Model:        model,
		Messages:     messages,
		ExtraHeaders: map[string]string{"Accept": "application/json"},
	}
	for k, v := range providers.BearerHeaders(p.settings.APIKey) {
		env.ExtraHeaders[k] = v
	}
	req, err := env.Request(openai.ChatCompletionRequest{
		Model:       env.Model,
		Messages:    providers.OpenAIMessages(env.Messages),
		Temperature: p.settings.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("provider", Name).
		Str("model", model).
		Int("estimated_tokens", tokens.EstimateChat(model, providers.Contents(messages)...)).
		Msg("starting completion")

	var content string
	err = p.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := p.dispatcher.Dispatch(ctx, dispatch.Direct(p.url("/chat/completions")), req,
			dispatch.WithLabel(Name),
			dispatch.WithAttemptTimeout(p.settings.AttemptTimeout),
			dispatch.WithoutNotice(),
		)
		if err != nil {
			if dispatch.StatusCode(err) == http.StatusBadGateway {
				p.health.MarkUnhealthy(err)
				p.models.Invalidate()
			}
			return err
		}
		content, err = providers.OpenAIContent(resp.Body)
		return err
	})
	if err != nil {
		return "", err
	}

	return p.finisher.Finish(messages, content), nil
}
