// Package config loads the plantdiag configuration file (YAML or JSON) and
// builds the collaborators it describes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"plantdiag/internal/diagnose"
	"plantdiag/internal/lattice"
)

// Environment variables that override file settings.
const (
	EnvOllamaURL = "PLANTDIAG_OLLAMA_URL"
	EnvModel     = "PLANTDIAG_MODEL"
)

// Backends accepted in oracle.backend.
const (
	BackendStub   = "stub"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// DefaultOllamaURL is used by the ollama backend when base_url is unset.
const DefaultOllamaURL = "http://localhost:11434"

var validate = validator.New()

// Duration is a time.Duration written as "1s", "250ms" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OracleConfig selects and tunes the reasoning backend.
type OracleConfig struct {
	Backend    string   `json:"backend" yaml:"backend" validate:"oneof=stub ollama openai"`
	BaseURL    string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model      string   `json:"model,omitempty" yaml:"model,omitempty" validate:"required_unless=Backend stub"`
	APIKeyEnv  string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Timeout    Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
	RatePerSec float64  `json:"rate_per_sec,omitempty" yaml:"rate_per_sec,omitempty" validate:"gte=0"`
	Burst      int      `json:"burst,omitempty" yaml:"burst,omitempty" validate:"gte=0"`
}

// APIKey reads the key from the configured environment variable.
func (o OracleConfig) APIKey() string {
	if o.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(o.APIKeyEnv)
}

// LogConfig mirrors the --log-level and --log-format flags.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// StoreConfig selects where pending reports and outcomes are kept. An empty
// path keeps them in memory.
type StoreConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is the whole configuration file.
type Config struct {
	Oracle        OracleConfig       `json:"oracle" yaml:"oracle"`
	Log           LogConfig          `json:"log" yaml:"log"`
	Store         StoreConfig        `json:"store" yaml:"store"`
	RulesFile     string             `json:"rules_file,omitempty" yaml:"rules_file,omitempty"`
	LayoutFile    string             `json:"layout_file,omitempty" yaml:"layout_file,omitempty"`
	ScenariosFile string             `json:"scenarios_file,omitempty" yaml:"scenarios_file,omitempty"`
	Fallbacks     []lattice.Fallback `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
	Senders       diagnose.SenderMap `json:"senders,omitempty" yaml:"senders,omitempty" validate:"dive"`
	Ticks         int                `json:"ticks" yaml:"ticks" validate:"gte=1,lte=100000"`
	TickInterval  Duration           `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty" validate:"gte=0"`
	Seed          uint64             `json:"seed" yaml:"seed"`
	Parallel      int                `json:"parallel" yaml:"parallel" validate:"gte=1,lte=64"`
}

// Default returns a configuration that runs offline with the stub oracle.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			Backend: BackendStub,
			Model:   "phi3",
			Timeout: Duration(60 * time.Second),
		},
		Log:      LogConfig{Level: "info", Format: "text"},
		Ticks:    7,
		Seed:     1,
		Parallel: 3,
	}
}

// LoadFile reads a config file (YAML or JSON) over the defaults, applies
// environment overrides and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Load(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	c.resolvePaths(filepath.Dir(path))
	return c, nil
}

// Load parses config bytes over the defaults. ext is the file extension
// (".json", ".yaml") for format hint; empty means detect from content.
func Load(data []byte, ext string) (*Config, error) {
	c := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	if ext == ".json" {
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides the oracle URL and model from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOllamaURL); ok && v != "" {
		c.Oracle.BaseURL = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Oracle.Model = v
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// resolvePaths makes file references relative to the config file's directory.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.RulesFile, &c.LayoutFile, &c.ScenariosFile, &c.Store.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
