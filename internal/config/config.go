// Package config holds the typed configuration for the research assistant.
// Defaults are defined in DefaultConfig; a YAML file and environment
// variables can override them. Unknown enabled-source names are rejected at
// load time, not at query time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Browser   BrowserConfig   `yaml:"browser"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Search    SearchConfig    `yaml:"search"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Report    ReportConfig    `yaml:"report"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig selects and tunes the language model provider.
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // ollama, openai, gemini
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	APIBase        string  `yaml:"api_base"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BrowserConfig tunes the automation backend.
type BrowserConfig struct {
	Headless         bool   `yaml:"headless"`
	UserAgent        string `yaml:"user_agent"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	ViewportWidth    int    `yaml:"viewport_width"`
	ViewportHeight   int    `yaml:"viewport_height"`
	RespectRobotsTxt bool   `yaml:"respect_robots_txt"`
	ScreenshotsDir   string `yaml:"screenshots_dir"`
}

// NavigationTimeout returns the page navigation timeout.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetViewportWidth returns viewport width.
func (c BrowserConfig) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c BrowserConfig) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

// RateLimitConfig controls per-domain request pacing.
type RateLimitConfig struct {
	RequestsPerMinute   int `yaml:"requests_per_minute"`
	DelayBetweenSeconds int `yaml:"delay_between_requests_seconds"`
}

// DelayBetweenRequests returns the minimum inter-request delay per domain.
func (c RateLimitConfig) DelayBetweenRequests() time.Duration {
	if c.DelayBetweenSeconds < 0 {
		return 0
	}
	return time.Duration(c.DelayBetweenSeconds) * time.Second
}

// KnowledgeConfig controls the source registry and its query cache.
type KnowledgeConfig struct {
	EnabledSources       []string `yaml:"enabled_sources"`
	CacheEnabled         bool     `yaml:"cache_enabled"`
	CacheMaxSize         int      `yaml:"cache_max_size"`
	RobotsCacheTTLSecond int      `yaml:"robots_cache_ttl_seconds"`
}

// RobotsCacheTTL returns how long a fetched robots.txt ruleset stays fresh.
func (c KnowledgeConfig) RobotsCacheTTL() time.Duration {
	if c.RobotsCacheTTLSecond <= 0 {
		return time.Hour
	}
	return time.Duration(c.RobotsCacheTTLSecond) * time.Second
}

// SearchConfig carries optional search engine credentials. With no
// credentials configured the web_search source falls back to simulated
// results.
type SearchConfig struct {
	GoogleAPIKey string `yaml:"google_api_key"`
	GoogleCSEID  string `yaml:"google_cse_id"`
	BingAPIKey   string `yaml:"bing_api_key"`
}

// ExecutorConfig tunes plan execution.
type ExecutorConfig struct {
	StepDelaySeconds int `yaml:"step_delay_seconds"`
}

// StepDelay returns the politeness pause between plan steps.
func (c ExecutorConfig) StepDelay() time.Duration {
	if c.StepDelaySeconds < 0 {
		return 0
	}
	return time.Duration(c.StepDelaySeconds) * time.Second
}

// ReportConfig tunes report synthesis and pre-summarization.
type ReportConfig struct {
	SizeThreshold    int `yaml:"size_threshold"`    // serialized results, chars
	ContentThreshold int `yaml:"content_threshold"` // per-item content, chars
	SummaryMaxLength int `yaml:"summary_max_length"`
}

// OutputConfig controls where reports are written.
type OutputConfig struct {
	ReportsDir string `yaml:"reports_dir"`
}

// LoggingConfig controls the category file logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
}

// KnownSources are the source names the registry can construct.
var KnownSources = []string{"web_search", "wikipedia", "arxiv"}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".webresearch")
	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "llama3.2",
			APIBase:        "http://localhost:11434/api",
			MaxTokens:      2048,
			Temperature:    0.7,
			TimeoutSeconds: 120,
		},
		Browser: BrowserConfig{
			Headless:         true,
			UserAgent:        "ResearchAssistant/1.0 (Educational Research Tool)",
			TimeoutSeconds:   30,
			ViewportWidth:    1280,
			ViewportHeight:   800,
			RespectRobotsTxt: true,
			ScreenshotsDir:   filepath.Join(base, "screenshots"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:   10,
			DelayBetweenSeconds: 6,
		},
		Knowledge: KnowledgeConfig{
			EnabledSources:       []string{"web_search", "wikipedia", "arxiv"},
			CacheEnabled:         true,
			CacheMaxSize:         1000,
			RobotsCacheTTLSecond: 3600,
		},
		Executor: ExecutorConfig{
			StepDelaySeconds: 2,
		},
		Report: ReportConfig{
			SizeThreshold:    6000,
			ContentThreshold: 800,
			SummaryMaxLength: 500,
		},
		Output: OutputConfig{
			ReportsDir: "reports",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Dir:     filepath.Join(base, "logs"),
			Level:   "info",
		},
	}
}

// Load reads the config file at path, applies environment overrides, and
// validates the result. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("WEBRESEARCH_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("WEBRESEARCH_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("WEBRESEARCH_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("WEBRESEARCH_LLM_API_BASE"); v != "" {
		c.LLM.APIBase = v
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Search.GoogleAPIKey = v
	}
	if v := os.Getenv("GOOGLE_CSE_ID"); v != "" {
		c.Search.GoogleCSEID = v
	}
	if v := os.Getenv("BING_API_KEY"); v != "" {
		c.Search.BingAPIKey = v
	}
}

// Validate rejects configurations that would only fail later at query time.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	for _, name := range c.Knowledge.EnabledSources {
		if !IsKnownSource(name) {
			return fmt.Errorf("unknown knowledge source %q (known: %v)", name, KnownSources)
		}
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.Knowledge.CacheMaxSize <= 0 {
		return fmt.Errorf("cache_max_size must be positive, got %d", c.Knowledge.CacheMaxSize)
	}
	return nil
}

// IsKnownSource reports whether name is a constructible source.
func IsKnownSource(name string) bool {
	for _, s := range KnownSources {
		if s == name {
			return true
		}
	}
	return false
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
