package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the resolved plume configuration.
type Config struct {
	BaseURL        string
	Credential     string
	PollInterval   time.Duration
	QueryLimit     int
	RequestTimeout time.Duration
	LogFile        string
	LogLevel       string
	Theme          string

	// Path is the config file that was read, or would have been.
	Path string
}

// Overrides carry command-line values. Empty fields leave the loaded value alone.
type Overrides struct {
	BaseURL    string
	Credential string
}

// Environment variables that override the config file.
const (
	EnvBaseURL    = "PARSEABLE_BASE_URL"
	EnvCredential = "PARSEABLE_B64_CRED"
)

const (
	defaultConfigPath     = "~/.config/plume/config.toml"
	defaultLogFile        = "~/.local/share/plume/plume.log"
	defaultPollInterval   = 3 * time.Second
	defaultQueryLimit     = 100
	defaultRequestTimeout = 10 * time.Second
	defaultLogLevel       = "info"
	defaultTheme          = "Nightfox"
)

// ErrNoBaseURL means no backend address was configured anywhere.
var ErrNoBaseURL = fmt.Errorf("no parseable base url configured (set base_url in the config file, %s, or --base-url)", EnvBaseURL)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollInterval:   defaultPollInterval,
		QueryLimit:     defaultQueryLimit,
		RequestTimeout: defaultRequestTimeout,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
		Theme:          defaultTheme,
	}
}

// Load reads the TOML file at path (the default location when empty), then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.Path = resolved

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer func() { _ = file.Close() }()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(bytes, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Apply merges command-line overrides into c.
func (c *Config) Apply(o Overrides) {
	if v := strings.TrimSpace(o.BaseURL); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(o.Credential); v != "" {
		c.Credential = v
	}
}

// Validate reports configuration that makes the backend unreachable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrNoBaseURL
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.QueryLimit < 0 {
		return fmt.Errorf("query_limit must not be negative, got %d", c.QueryLimit)
	}
	return nil
}

func decode(bytes []byte, cfg *Config) error {
	var raw struct {
		BaseURL        string `toml:"base_url"`
		Credential     string `toml:"credential"`
		PollInterval   string `toml:"poll_interval"`
		QueryLimit     *int   `toml:"query_limit"`
		RequestTimeout string `toml:"request_timeout"`
		LogFile        string `toml:"log_file"`
		LogLevel       string `toml:"log_level"`
		Theme          string `toml:"theme"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	cfg.BaseURL = strings.TrimSpace(raw.BaseURL)
	cfg.Credential = strings.TrimSpace(raw.Credential)

	if v := strings.TrimSpace(raw.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse config: poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := strings.TrimSpace(raw.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse config: request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if raw.QueryLimit != nil {
		cfg.QueryLimit = *raw.QueryLimit
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.Theme); v != "" {
		cfg.Theme = v
	}
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvCredential); ok && strings.TrimSpace(v) != "" {
		c.Credential = strings.TrimSpace(v)
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
