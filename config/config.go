package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM   LLMConfig   `yaml:"llm"`
	Video VideoConfig `yaml:"video"`
	Paths PathsConfig `yaml:"paths"`
}

type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestTimeoutSec int     `yaml:"request_timeout_sec"`

	// APIKey comes from the LLM_API_KEY env var, never from YAML
	APIKey string `yaml:"-"`
}

type VideoConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Resolution        string  `yaml:"resolution"` // 720p | 1080p
	Style             string  `yaml:"style"`      // realistic | animated | artistic
	SceneCount        int     `yaml:"scene_count"`
	PollIntervalSec   float64 `yaml:"poll_interval_sec"`
	PollTimeoutSec    float64 `yaml:"poll_timeout_sec"`
	RequestTimeoutSec int     `yaml:"request_timeout_sec"`
	MaxRetries        int     `yaml:"max_retries"`
	MaxConcurrency    int     `yaml:"max_concurrency"`

	// APIKey comes from the VIDEO_API_KEY env var, never from YAML
	APIKey string `yaml:"-"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
}

// Load reads config.yaml (falling back to defaults if the file does not
// exist), then applies env var overrides and pulls in API keys from env.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:           "https://api.deepseek.com",
			Model:             "deepseek-chat",
			Temperature:       0.7,
			MaxTokens:         3000,
			RequestTimeoutSec: 60,
		},
		Video: VideoConfig{
			BaseURL:           "https://ark.cn-beijing.volces.com/api/v3",
			Model:             "doubao-seedance",
			Resolution:        "720p",
			Style:             "realistic",
			SceneCount:        3,
			PollIntervalSec:   5,
			PollTimeoutSec:    300,
			RequestTimeoutSec: 30,
			MaxRetries:        3,
			MaxConcurrency:    1,
		},
		Paths: PathsConfig{
			Output: "videos",
		},
	}
}

// applyEnv layers env vars over the YAML values. Secrets only ever come
// from env; the rest of the overrides keep .env-only deployments working.
func applyEnv(cfg *Config) {
	cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")
	cfg.Video.APIKey = os.Getenv("VIDEO_API_KEY")

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("VIDEO_API_BASE_URL"); v != "" {
		cfg.Video.BaseURL = v
	}
	if v := os.Getenv("VIDEO_OUTPUT_DIR"); v != "" {
		cfg.Paths.Output = v
	}
	if v := os.Getenv("VIDEO_RESOLUTION"); v != "" {
		cfg.Video.Resolution = v
	}
	if v := os.Getenv("VIDEO_STYLE"); v != "" {
		cfg.Video.Style = v
	}
	if v := os.Getenv("DEFAULT_SCENE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Video.SceneCount = n
		}
	}
}

func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY not set")
	}
	if c.Video.APIKey == "" {
		return fmt.Errorf("VIDEO_API_KEY not set")
	}
	switch c.Video.Resolution {
	case "720p", "1080p":
	default:
		return fmt.Errorf("video resolution must be 720p or 1080p, got %q", c.Video.Resolution)
	}
	switch c.Video.Style {
	case "realistic", "animated", "artistic":
	default:
		return fmt.Errorf("video style must be realistic, animated or artistic, got %q", c.Video.Style)
	}
	if c.Video.SceneCount <= 0 {
		return fmt.Errorf("scene_count must be positive, got %d", c.Video.SceneCount)
	}
	if c.Video.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive")
	}
	if c.Video.PollTimeoutSec <= 0 {
		return fmt.Errorf("poll_timeout_sec must be positive")
	}
	if c.Video.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.Video.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1")
	}
	if c.LLM.RequestTimeoutSec <= 0 || c.Video.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request_timeout_sec must be positive")
	}
	return nil
}

func (v VideoConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSec * float64(time.Second))
}

func (v VideoConfig) PollTimeout() time.Duration {
	return time.Duration(v.PollTimeoutSec * float64(time.Second))
}

func (v VideoConfig) RequestTimeout() time.Duration {
	return time.Duration(v.RequestTimeoutSec) * time.Second
}

func (l LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSec) * time.Second
}

// Summary returns a printable overview with secrets masked
func (c *Config) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("LLM: %s model=%s key=%s\n", c.LLM.BaseURL, c.LLM.Model, mask(c.LLM.APIKey)))
	sb.WriteString(fmt.Sprintf("Video API: %s model=%s key=%s\n", c.Video.BaseURL, c.Video.Model, mask(c.Video.APIKey)))
	sb.WriteString(fmt.Sprintf("Video: %s %s, %d scenes, poll every %s (timeout %s), %d retries, concurrency %d\n",
		c.Video.Resolution, c.Video.Style, c.Video.SceneCount,
		c.Video.PollInterval(), c.Video.PollTimeout(), c.Video.MaxRetries, c.Video.MaxConcurrency))
	sb.WriteString(fmt.Sprintf("Output dir: %s", c.Paths.Output))
	return sb.String()
}

func mask(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 6 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
