package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := NewSettings()

	assert.Equal(t, DefaultEMCModel, s.EMC.Model)
	require.Len(t, s.EMC.Endpoints, 3)
	assert.Len(t, s.EMC.Endpoints[0].Proxies, 3)
	assert.Equal(t, 10*time.Second, s.EMC.AttemptTimeout)

	assert.Equal(t, DefaultLMStudioBaseURL, s.LMStudio.BaseURL)
	assert.Equal(t, 600*time.Second, s.LMStudio.AttemptTimeout)
	assert.Equal(t, 3, s.LMStudio.Retries)
	assert.Equal(t, 2*time.Second, s.LMStudio.RetryDelay)
	assert.Equal(t, 30*time.Second, s.LMStudio.HealthInterval)
	assert.Equal(t, 5*time.Second, s.LMStudio.ProbeTimeout)
	assert.Equal(t, 5*time.Minute, s.LMStudio.ModelCacheTTL)
	assert.InDelta(t, 0.7, s.LMStudio.Temperature, 0.0001)

	assert.Len(t, s.Voice.Endpoints, 2)
	assert.Equal(t, 15*time.Second, s.Voice.AttemptTimeout)
	assert.Equal(t, DefaultProtocolEndpoint, s.Protocol.Endpoint)
}

func TestFromYAMLKeepsUnsetDefaults(t *testing.T) {
	s, err := FromYAML([]byte(`
emc:
  api_key: secret
  attempt_timeout: 3
  endpoints:
    - url: http://a.example/v1/chat/completions
      proxies: ["http://proxy.example/?url="]
lmstudio:
  base_url: http://10.0.0.2:1234/v1
  retry_delay: 1
  model_cache_ttl: 60
markers:
  index: ["*Indexer*"]
protocol:
  base_url: http://localhost:8080
  step_timeout: 5
`))
	require.NoError(t, err)

	assert.Equal(t, "secret", s.EMC.APIKey)
	assert.Equal(t, 3*time.Second, s.EMC.AttemptTimeout)
	assert.Equal(t, DefaultEMCModel, s.EMC.Model)
	require.Len(t, s.EMC.Endpoints, 1)
	assert.Equal(t, "http://a.example/v1/chat/completions", s.EMC.Endpoints[0].URL)
	assert.Equal(t, []string{"http://proxy.example/?url="}, s.EMC.Endpoints[0].Proxies)

	assert.Equal(t, "http://10.0.0.2:1234/v1", s.LMStudio.BaseURL)
	assert.Equal(t, time.Second, s.LMStudio.RetryDelay)
	assert.Equal(t, time.Minute, s.LMStudio.ModelCacheTTL)
	assert.Equal(t, 600*time.Second, s.LMStudio.AttemptTimeout)
	assert.Equal(t, 3, s.LMStudio.Retries)

	assert.Equal(t, DefaultOllamaBaseURL, s.Ollama.BaseURL)
	assert.Equal(t, []string{"*Indexer*"}, s.Markers.Index)
	assert.Equal(t, "http://localhost:8080", s.Protocol.BaseURL)
	assert.Equal(t, 5*time.Second, s.Protocol.StepTimeout)
	assert.Equal(t, DefaultProtocolEndpoint, s.Protocol.Endpoint)
}

func TestFromYAMLInvalid(t *testing.T) {
	_, err := FromYAML([]byte("emc: [1, 2"))
	require.Error(t, err)

	_, err = FromYAML([]byte("lmstudio:\n  retry_delay: soon\n"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	s, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, NewSettings().EMC.Model, s.EMC.Model)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("emc:\n  model: other\n"), 0o600))
	s, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "other", s.EMC.Model)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	s := NewSettings()
	c := s.Clone()
	c.EMC.Model = "changed"
	c.EMC.Endpoints[0].Proxies[0] = "changed"
	assert.Equal(t, DefaultEMCModel, s.EMC.Model)
	assert.Equal(t, DefaultEMCProxies[0], s.EMC.Endpoints[0].Proxies[0])
}
