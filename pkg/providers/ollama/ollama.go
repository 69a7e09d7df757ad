// Package ollama talks to a local Ollama server through its native API.
package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/helpers"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/settings"
	"github.com/go-go-golems/relay/pkg/tokens"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const Name = "ollama"

type Provider struct {
	settings   *settings.LocalSettings
	dispatcher *dispatch.Dispatcher
	probes     *dispatch.Dispatcher
	health     *providers.HealthGate
	models     *providers.ModelCache
	retrier    providers.Retrier
	finisher   *providers.Finisher
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
		base := []providers.HealthGateOption{
			providers.WithHealthInterval(p.settings.HealthInterval),
			providers.WithProbeTimeout(p.settings.ProbeTimeout),
		}
		p.health = providers.NewHealthGate(Name, p.probe, append(base, options...)...)
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
	WithHealthOptions()(p)
	p.models = providers.NewModelCache(p.fetchModels, s.ModelCacheTTL)
	for _, o := range options {
		o(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) url(path string) string {
	return strings.TrimRight(p.settings.BaseURL, "/") + path
}

func (p *Provider) tags(ctx context.Context) (*api.ListResponse, error) {
	resp, err := p.probes.Dispatch(ctx, dispatch.Direct(p.url("/api/tags")), &dispatch.Request{
		Method: http.MethodGet,
	}, dispatch.WithLabel(Name+" tags"), dispatch.WithRequireJSON())
	if err != nil {
		return nil, err
	}
	list := &api.ListResponse{}
	if err := json.Unmarshal(resp.Body, list); err != nil {
		return nil, errors.Wrap(err, "could not decode tag list")
	}
	return list, nil
}

func (p *Provider) probe(ctx context.Context) error {
	_, err := p.tags(ctx)
	return err
}

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	list, err := p.tags(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ret = append(ret, m.Name)
	}
	return ret, nil
}

func (p *Provider) Models(ctx context.Context) ([]string, error) {
	return p.models.Models(ctx)
}

// SupportsModel reports whether the server has pulled the model. Names
// without a tag match any tag of that model.
func (p *Provider) SupportsModel(ctx context.Context, model string) (bool, error) {
	models, err := p.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m == model || strings.SplitN(m, ":", 2)[0] == model {
			return true, nil
		}
	}
	return false, nil
}

func (p *Provider) CheckHealth(ctx context.Context) providers.HealthState {
	return p.health.Check(ctx)
}

// chatResponse is the subset of the non-streaming /api/chat answer we read.
type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
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
		ExtraHeaders: providers.BearerHeaders(p.settings.APIKey),
	}
	msgs := make([]api.Message, 0, len(env.Messages))
	for _, m := range env.Messages {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}
	req, err := env.Request(&api.ChatRequest{
		Model:    env.Model,
		Messages: msgs,
		Stream:   helpers.Pointer(false),
		Options: map[string]interface{}{
			"temperature": p.settings.Temperature,
		},
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
		resp, err := p.dispatcher.Dispatch(ctx, dispatch.Direct(p.url("/api/chat")), req,
			dispatch.WithLabel(Name),
			dispatch.WithAttemptTimeout(p.settings.AttemptTimeout),
			dispatch.WithRequireJSON(),
			dispatch.WithoutNotice(),
		)
		if err != nil {
			if dispatch.StatusCode(err) == http.StatusBadGateway {
				p.health.MarkUnhealthy(err)
				p.models.Invalidate()
			}
			return err
		}
		content, err = decodeChat(resp.Body)
		return err
	})
	if err != nil {
		return "", err
	}

	return p.finisher.Finish(messages, content), nil
}

func decodeChat(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "could not decode chat response")
	}
	if resp.Error != "" {
		return "", errors.Errorf("ollama error: %s", resp.Error)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", providers.ErrEmptyContent
	}
	return content, nil
}
