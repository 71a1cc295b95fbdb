// Package config loads tapwrite settings from YAML with environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/csheth/tapwrite/internal/backend"
	"github.com/csheth/tapwrite/internal/compose"
)

const (
	// EnvBackend overrides backend.url.
	EnvBackend = "TAPWRITE_BACKEND"
	// EnvLog overrides log.path.
	EnvLog = "TAPWRITE_LOG"

	appDir = "tapwrite"
)

// Config is the full settings file.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	UI      UIConfig      `yaml:"ui"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig locates the lookup service.
type BackendConfig struct {
	URL           string         `yaml:"url"`
	Timeout       string         `yaml:"timeout"`
	TrailingSlash bool           `yaml:"trailing_slash"`
	MaxKeyRunes   map[string]int `yaml:"max_key_runes"`
}

// UIConfig tunes the terminal front-end.
type UIConfig struct {
	Mode      string `yaml:"mode"` // classic, bci
	AltScreen bool   `yaml:"alt_screen"`
}

// HistoryConfig locates the sent-message log.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logging. Path "-" logs to stderr.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:           "http://127.0.0.1:8000/",
			Timeout:       "10s",
			TrailingSlash: true,
			MaxKeyRunes: map[string]int{
				string(backend.EndpointQuery): backend.DefaultKeyLimits[backend.EndpointQuery],
				string(backend.EndpointGuess): backend.DefaultKeyLimits[backend.EndpointGuess],
				string(backend.EndpointSplit): backend.DefaultKeyLimits[backend.EndpointSplit],
				string(backend.EndpointSend):  backend.DefaultKeyLimits[backend.EndpointSend],
			},
		},
		UI: UIConfig{
			Mode:      "classic",
			AltScreen: true,
		},
		History: HistoryConfig{
			Path: userPath(os.UserConfigDir, "history.json"),
		},
		Log: LogConfig{
			Path:  userPath(os.UserCacheDir, "tapwrite.log"),
			Level: "info",
		},
	}
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return userPath(os.UserConfigDir, "config.yaml")
}

func userPath(base func() (string, error), name string) string {
	dir, err := base()
	if err != nil || dir == "" {
		return filepath.Join(".", name)
	}
	return filepath.Join(dir, appDir, name)
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv(EnvBackend)); value != "" {
		c.Backend.URL = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvLog)); value != "" {
		c.Log.Path = value
	}
}

// GetTimeout returns the backend timeout, falling back to 10s when unset or
// malformed.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// KeyLimits converts max_key_runes into per-endpoint limits.
func (c *Config) KeyLimits() map[backend.Endpoint]int {
	limits := make(map[backend.Endpoint]int, len(c.Backend.MaxKeyRunes))
	for name, limit := range c.Backend.MaxKeyRunes {
		limits[backend.Endpoint(name)] = limit
	}
	return limits
}

// BackendClientConfig is the backend.Config these settings describe.
func (c *Config) BackendClientConfig() backend.Config {
	return backend.Config{
		BaseURL:       c.Backend.URL,
		Timeout:       c.GetTimeout(),
		TrailingSlash: c.Backend.TrailingSlash,
		KeyLimits:     c.KeyLimits(),
	}
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if parsed, err := url.Parse(c.Backend.URL); err != nil {
		result = multierror.Append(result, fmt.Errorf("backend.url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		result = multierror.Append(result, fmt.Errorf("backend.url %q: scheme must be http or https", c.Backend.URL))
	}

	if c.Backend.Timeout != "" {
		if d, err := time.ParseDuration(c.Backend.Timeout); err != nil {
			result = multierror.Append(result, fmt.Errorf("backend.timeout: %w", err))
		} else if d <= 0 {
			result = multierror.Append(result, fmt.Errorf("backend.timeout must be positive, got %s", d))
		}
	}

	for name := range c.Backend.MaxKeyRunes {
		if _, ok := backend.DefaultKeyLimits[backend.Endpoint(name)]; !ok {
			result = multierror.Append(result, fmt.Errorf("backend.max_key_runes: unknown endpoint %q", name))
		}
	}

	if _, err := compose.ParseMode(c.UI.Mode); err != nil {
		result = multierror.Append(result, fmt.Errorf("ui.mode: %w", err))
	}

	if !validLevel(c.Log.Level) {
		result = multierror.Append(result, fmt.Errorf("log.level %q (valid: %v)", c.Log.Level, ValidLevels))
	}

	return result.ErrorOrNil()
}

func validLevel(level string) bool {
	if level == "" {
		return true
	}
	for _, valid := range ValidLevels {
		if strings.EqualFold(level, valid) {
			return true
		}
	}
	return false
}
