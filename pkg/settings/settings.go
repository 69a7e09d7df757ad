// Package settings holds the YAML configuration of every backend.
//
// Durations are configured as integer seconds, the same way the client
// timeout is configured in the chat settings. Absent keys keep their
// defaults.
package settings

import (
	"os"
	"time"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	DefaultEMCEndpoints = []string{
		"http://162.218.231.180:50005/edge/16Uiu2HAm9oMkh29oyQaLRjVNn7dFxUqfHrG3xtmdFo1xmoKRPd6r/8001/v1/chat/completions",
		"http://162.218.231.180:50005/edge/16Uiu2HAmSodeWgMsMN9TWYo3QhtdC1s9TkGtaFdWqCqxwMcq3R3s/8002/v1/chat/completions",
		"http://18.167.51.1:50005/edge/16Uiu2HAmQnkL58V215wZUDCLBTxeUQZeCXUwzPZKLAQKyvBQ7c3a/8002/v1/chat/completions",
	}
	DefaultEMCProxies = []string{
		"https://corsproxy.io/?",
		"https://cors-anywhere.herokuapp.com/",
		"https://api.allorigins.win/raw?url=",
	}
	DefaultVoiceEndpoints = []string{
		"http://18.167.51.1:40005/edge/16Uiu2HAmQnkL58V215wZUDCLBTxeUQZeCXUwzPZKLAQKyvBQ7c3a/8003/extract_text",
		"http://18.167.51.1:40005/edge/16Uiu2HAmQnkL58V215wZUDCLBTxeUQZeCXUwzPZKLAQKyvBQ7c3a/8004/extract_text",
	}
)

const (
	DefaultEMCModel         = "deepseek-chat"
	DefaultLMStudioBaseURL  = "http://127.0.0.1:1234/v1"
	DefaultOllamaBaseURL    = "http://127.0.0.1:11434"
	DefaultProtocolEndpoint = "/api/aio/protocol"
)

func seconds(i *int) time.Duration {
	return time.Duration(*i) * time.Second
}

type EMCSettings struct {
	Endpoints            []dispatch.Endpoint `yaml:"endpoints,omitempty"`
	APIKey               string              `yaml:"api_key,omitempty"`
	Model                string              `yaml:"model,omitempty"`
	AttemptTimeout       time.Duration       `yaml:"-"`
	AttemptsPerCandidate int                 `yaml:"attempts_per_candidate,omitempty"`
}

func NewEMCSettings() *EMCSettings {
	return &EMCSettings{
		Endpoints:            dispatch.WithSharedProxies(DefaultEMCEndpoints, DefaultEMCProxies),
		Model:                DefaultEMCModel,
		AttemptTimeout:       dispatch.DefaultAttemptTimeout,
		AttemptsPerCandidate: dispatch.DefaultAttemptsPerCandidate,
	}
}

func (s *EMCSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias EMCSettings
	aux := &struct {
		AttemptTimeout *int `yaml:"attempt_timeout,omitempty"`
		Alias `yaml:",inline"`
	}{
		Alias: Alias(*s),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	*s = EMCSettings(aux.Alias)
	if aux.AttemptTimeout != nil {
		s.AttemptTimeout = seconds(aux.AttemptTimeout)
	}
	return nil
}

// LocalSettings configures a locally hosted backend.
type LocalSettings struct {
	BaseURL        string        `yaml:"base_url,omitempty"`
	APIKey         string        `yaml:"api_key,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	Temperature    float32       `yaml:"temperature,omitempty"`
	Retries        int           `yaml:"retries,omitempty"`
	AttemptTimeout time.Duration `yaml:"-"`
	RetryDelay     time.Duration `yaml:"-"`
	HealthInterval time.Duration `yaml:"-"`
	ProbeTimeout   time.Duration `yaml:"-"`
	ModelCacheTTL  time.Duration `yaml:"-"`
}

func newLocalSettings(baseURL string) *LocalSettings {
	return &LocalSettings{
		BaseURL:        baseURL,
		Temperature:    0.7,
		Retries:        3,
		AttemptTimeout: 600 * time.Second,
		RetryDelay:     2 * time.Second,
		HealthInterval: 30 * time.Second,
		ProbeTimeout:   5 * time.Second,
		ModelCacheTTL:  5 * time.Minute,
	}
}

func NewLMStudioSettings() *LocalSettings {
	return newLocalSettings(DefaultLMStudioBaseURL)
}

func NewOllamaSettings() *LocalSettings {
	return newLocalSettings(DefaultOllamaBaseURL)
}

func (s *LocalSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias LocalSettings
	aux := &struct {
		AttemptTimeout *int `yaml:"attempt_timeout,omitempty"`
		RetryDelay     *int `yaml:"retry_delay,omitempty"`
		HealthInterval *int `yaml:"health_interval,omitempty"`
		ProbeTimeout   *int `yaml:"probe_timeout,omitempty"`
		ModelCacheTTL  *int `yaml:"model_cache_ttl,omitempty"`
		Alias `yaml:",inline"`
	}{
		Alias: Alias(*s),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	*s = LocalSettings(aux.Alias)
	if aux.AttemptTimeout != nil {
		s.AttemptTimeout = seconds(aux.AttemptTimeout)
	}
	if aux.RetryDelay != nil {
		s.RetryDelay = seconds(aux.RetryDelay)
	}
	if aux.HealthInterval != nil {
		s.HealthInterval = seconds(aux.HealthInterval)
	}
	if aux.ProbeTimeout != nil {
		s.ProbeTimeout = seconds(aux.ProbeTimeout)
	}
	if aux.ModelCacheTTL != nil {
		s.ModelCacheTTL = seconds(aux.ModelCacheTTL)
	}
	return nil
}

type VoiceSettings struct {
	Endpoints      []string      `yaml:"endpoints,omitempty"`
	APIKey         string        `yaml:"api_key,omitempty"`
	AttemptTimeout time.Duration `yaml:"-"`
	// Responder names the completion provider transcripts are chained into.
	Responder string `yaml:"responder,omitempty"`
}

func NewVoiceSettings() *VoiceSettings {
	return &VoiceSettings{
		Endpoints:      append([]string(nil), DefaultVoiceEndpoints...),
		AttemptTimeout: 15 * time.Second,
		Responder:      "emc",
	}
}

func (s *VoiceSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias VoiceSettings
	aux := &struct {
		AttemptTimeout *int `yaml:"attempt_timeout,omitempty"`
		Alias `yaml:",inline"`
	}{
		Alias: Alias(*s),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	*s = VoiceSettings(aux.Alias)
	if aux.AttemptTimeout != nil {
		s.AttemptTimeout = seconds(aux.AttemptTimeout)
	}
	return nil
}

// MarkerSettings holds the glob patterns used to classify system prompts.
type MarkerSettings struct {
	Index     []string `yaml:"index,omitempty"`
	Structure []string `yaml:"structure,omitempty"`
}

type ProtocolSettings struct {
	BaseURL     string        `yaml:"base_url,omitempty"`
	Endpoint    string        `yaml:"endpoint,omitempty"`
	StepTimeout time.Duration `yaml:"-"`
}

func NewProtocolSettings() *ProtocolSettings {
	return &ProtocolSettings{
		Endpoint:    DefaultProtocolEndpoint,
		StepTimeout: 60 * time.Second,
	}
}

func (s *ProtocolSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ProtocolSettings
	aux := &struct {
		StepTimeout *int `yaml:"step_timeout,omitempty"`
		Alias `yaml:",inline"`
	}{
		Alias: Alias(*s),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	*s = ProtocolSettings(aux.Alias)
	if aux.StepTimeout != nil {
		s.StepTimeout = seconds(aux.StepTimeout)
	}
	return nil
}

type Settings struct {
	EMC      *EMCSettings      `yaml:"emc,omitempty"`
	LMStudio *LocalSettings    `yaml:"lmstudio,omitempty"`
	Ollama   *LocalSettings    `yaml:"ollama,omitempty"`
	Voice    *VoiceSettings    `yaml:"voice,omitempty"`
	Markers  *MarkerSettings   `yaml:"markers,omitempty"`
	Protocol *ProtocolSettings `yaml:"protocol,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		EMC:      NewEMCSettings(),
		LMStudio: NewLMStudioSettings(),
		Ollama:   NewOllamaSettings(),
		Voice:    NewVoiceSettings(),
		Markers:  &MarkerSettings{},
		Protocol: NewProtocolSettings(),
	}
}

// FromYAML decodes b over the defaults.
func FromYAML(b []byte) (*Settings, error) {
	s := NewSettings()
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "could not parse settings")
	}
	return s, nil
}

// LoadFile reads settings from path. An empty path yields the defaults.
func LoadFile(path string) (*Settings, error) {
	if path == "" {
		return NewSettings(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read settings file %s", path)
	}
	s, err := FromYAML(b)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	return s, nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
