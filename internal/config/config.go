// Package config loads cmsbulk settings from built-in defaults, a YAML file,
// a .env file and CMSBULK_* environment variables, in that order of precedence
// (later wins). The loaded *Config is passed explicitly; nothing here is global.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultConfigFile is read when present and no --config flag is given.
const DefaultConfigFile = "cmsbulk.yaml"

// Built-in defaults.
const (
	DefaultBatchSize      = 80
	DefaultDelayMS        = 1000
	DefaultTimeoutSeconds = 30
	DefaultLookupRetries  = 3
	DefaultChapters       = "chapters"
	DefaultWorks          = "works"
	maxBatchSize          = 1000
)

// Validation errors.
var (
	ErrMissingBaseURL = errors.New("cms.base_url is required (or set CMSBULK_API_URL)")
	ErrMissingToken   = errors.New("API token is required (set CMSBULK_API_TOKEN)")
)

// Config is the full cmsbulk configuration.
type Config struct {
	CMS         CMSConfig         `yaml:"cms"`
	Batch       BatchConfig       `yaml:"batch"`
	Collections CollectionsConfig `yaml:"collections"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CMSConfig describes the remote API.
type CMSConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LookupRetries  int    `yaml:"lookup_retries"`

	// Token is only read from the environment and never written to YAML.
	Token string `yaml:"-"`
}

// Timeout returns the per-request HTTP timeout.
func (c CMSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BatchConfig controls group size and pacing of bulk jobs.
type BatchConfig struct {
	Size    int `yaml:"size"`
	DelayMS int `yaml:"delay_ms"`
}

// Delay returns the inter-batch pause.
func (b BatchConfig) Delay() time.Duration {
	return time.Duration(b.DelayMS) * time.Millisecond
}

// CollectionsConfig names the CMS collections touched by bulk flows.
type CollectionsConfig struct {
	Chapters string `yaml:"chapters"`
	Works    string `yaml:"works"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		CMS: CMSConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
			LookupRetries:  DefaultLookupRetries,
		},
		Batch: BatchConfig{
			Size:    DefaultBatchSize,
			DelayMS: DefaultDelayMS,
		},
		Collections: CollectionsConfig{
			Chapters: DefaultChapters,
			Works:    DefaultWorks,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is the YAML file; empty means DefaultConfigFile if it exists.
	ConfigFile string
	// EnvFile is the .env file; empty means ".env" if it exists.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, the YAML file, the .env file and the
// environment. Explicitly named files must exist; default ones are optional.
// The result is not validated: callers apply flag overrides, then Validate.
func Load(opts LoadOptions) (*Config, error) {
	cfg := New()

	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := ShallowMergeYAML(cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := LoadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that every command relies on.
func (c *Config) Validate() error {
	if c.Batch.Size < 1 || c.Batch.Size > maxBatchSize {
		return fmt.Errorf("batch.size must be between 1 and %d, got %d", maxBatchSize, c.Batch.Size)
	}
	if c.Batch.DelayMS < 0 {
		return fmt.Errorf("batch.delay_ms must be >= 0, got %d", c.Batch.DelayMS)
	}
	if c.CMS.TimeoutSeconds <= 0 {
		return fmt.Errorf("cms.timeout_seconds must be > 0, got %d", c.CMS.TimeoutSeconds)
	}
	if c.CMS.LookupRetries < 1 {
		return fmt.Errorf("cms.lookup_retries must be >= 1, got %d", c.CMS.LookupRetries)
	}
	if strings.TrimSpace(c.Collections.Chapters) == "" || strings.TrimSpace(c.Collections.Works) == "" {
		return errors.New("collections.chapters and collections.works cannot be empty")
	}
	return c.Logging.Validate()
}

// ValidateAPI checks the settings needed to talk to the CMS.
func (c *Config) ValidateAPI() error {
	if strings.TrimSpace(c.CMS.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.CMS.BaseURL)
	if err != nil {
		return fmt.Errorf("cms.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("cms.base_url must be http or https, got %q", c.CMS.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("cms.base_url has no host: %q", c.CMS.BaseURL)
	}
	if strings.TrimSpace(c.CMS.Token) == "" {
		return ErrMissingToken
	}
	return nil
}
