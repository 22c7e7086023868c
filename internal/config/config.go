// Package config loads proofline settings from an optional file and the environment.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvModel        = "PROOFLINE_MODEL"
	EnvRedisURL     = "PROOFLINE_REDIS_URL"
	EnvAddr         = "PROOFLINE_ADDR"
	EnvLogLevel     = "PROOFLINE_LOG_LEVEL"
	EnvMaxInputSize = "PROOFLINE_MAX_INPUT_SIZE"
)

// DefaultStoreKeysEnv holds the snapshot encryption keys when
// store.encryption_keys_env is not set.
const DefaultStoreKeysEnv = "PROOFLINE_STORE_KEYS"

// DefaultAPIKeyEnvs are consulted in order when api_key_env is not set.
var DefaultAPIKeyEnvs = []string{"GEMINI_API_KEY", "API_KEY"}

// SearchNames are tried in the working directory when no path is given.
var SearchNames = []string{"proofline.yaml", "proofline.yml", "proofline.toml", "proofline.json"}

// Config is the full application configuration.
type Config struct {
	Model     string          `mapstructure:"model"`
	APIKeyEnv string          `mapstructure:"api_key_env"`
	LogLevel  string          `mapstructure:"log_level"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Input     InputConfig     `mapstructure:"input"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`

	// Source is the file the configuration was read from, if any.
	Source string `mapstructure:"-"`
}

type AnalysisConfig struct {
	// Timeout bounds each analysis. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type StoreConfig struct {
	// RedisURL selects the redis store; empty means in-memory.
	RedisURL   string        `mapstructure:"redis_url"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Prefix     string        `mapstructure:"prefix"`
	// EncryptionKeysEnv names the variable with comma-separated base64 AES-256
	// keys. The first key encrypts; the rest only decrypt.
	EncryptionKeysEnv string `mapstructure:"encryption_keys_env"`
}

type InputConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

type WorkspaceConfig struct {
	Dir string `mapstructure:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			SessionTTL: 24 * time.Hour,
			Prefix:     "proofline:session:",
		},
		Workspace: WorkspaceConfig{
			Dir: ".",
		},
	}
}

// Load reads path (or the first of SearchNames that exists when path is empty),
// applies environment overrides and validates the result. A missing default file
// is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = find()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		cfg.Source = path
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIKey returns the Gemini API key from the configured variable, or from
// DefaultAPIKeyEnvs in order.
func (c *Config) APIKey() string {
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	for _, name := range DefaultAPIKeyEnvs {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// EncryptionKeys decodes the snapshot keys. Nil means snapshots are stored in
// the clear.
func (c *Config) EncryptionKeys() ([][]byte, error) {
	name := c.Store.EncryptionKeysEnv
	if name == "" {
		name = DefaultStoreKeysEnv
	}
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}

	var keys [][]byte
	for i, part := range strings.Split(raw, ",") {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%s: key %d is not base64: %w", name, i, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("%s: key %d must be 32 bytes, got %d", name, i, len(key))
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Timeout < 0 {
		errs = append(errs, errors.New("analysis.timeout must not be negative"))
	}
	if c.Store.SessionTTL < 0 {
		errs = append(errs, errors.New("store.session_ttl must not be negative"))
	}
	if c.Input.MaxSize < 0 {
		errs = append(errs, errors.New("input.max_size must not be negative"))
	}
	if _, err := c.EncryptionKeys(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvMaxInputSize); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxInputSize, err)
		}
		c.Input.MaxSize = size
	}
	return nil
}

func find() string {
	for _, name := range SearchNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		// Default to YAML
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return raw, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
