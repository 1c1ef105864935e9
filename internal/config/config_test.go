package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 6*time.Second, cfg.RateLimit.DelayBetweenRequests())
	assert.Equal(t, 1000, cfg.Knowledge.CacheMaxSize)
	assert.True(t, cfg.Browser.RespectRobotsTxt, "robots.txt compliance should default on")
	assert.Equal(t, 6000, cfg.Report.SizeThreshold)
	assert.Equal(t, 800, cfg.Report.ContentThreshold)
	assert.NoError(t, cfg.Validate(), "defaults should validate")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "missing file should fall back to defaults")
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoadFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o-mini
  api_base: https://api.example.com/v1
rate_limit:
  requests_per_minute: 20
knowledge:
  enabled_sources: [wikipedia]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, []string{"wikipedia"}, cfg.Knowledge.EnabledSources)
	// Untouched fields keep defaults
	assert.Equal(t, 2*time.Second, cfg.Executor.StepDelay())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEBRESEARCH_LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GOOGLE_CSE_ID", "cse-123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "cse-123", cfg.Search.GoogleCSEID)
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Knowledge.EnabledSources = append(cfg.Knowledge.EnabledSources, "usenet")
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.LLM.Provider = "watson"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.LLM.Model = "llama3.3"

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.3", loaded.LLM.Model)
}
