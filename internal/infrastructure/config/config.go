package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// PathEnv names the environment variable holding an optional config file.
const PathEnv = "LIVEPEN_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Preview   PreviewConfig   `yaml:"preview" toml:"preview"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" yaml:"host" toml:"host"`
	// AllowOrigins restricts cross-origin callers; empty allows all
	AllowOrigins []string `envconfig:"CORS_ORIGINS" yaml:"allow_origins" toml:"allow_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// StorageConfig selects the persistence collaborator.
type StorageConfig struct {
	Backend string `envconfig:"STORAGE_BACKEND" yaml:"backend" toml:"backend"` // file, memory
	Dir     string `envconfig:"STORAGE_DIR" yaml:"dir" toml:"dir"`
}

// PreviewConfig tunes the debounce window and the execution boundary.
type PreviewConfig struct {
	Debounce      Duration `envconfig:"PREVIEW_DEBOUNCE" yaml:"debounce" toml:"debounce"`
	Engine        string   `envconfig:"PREVIEW_ENGINE" yaml:"engine" toml:"engine"` // sandbox, chrome
	ScriptTimeout Duration `envconfig:"PREVIEW_SCRIPT_TIMEOUT" yaml:"script_timeout" toml:"script_timeout"`
	MaxCallStack  int      `envconfig:"PREVIEW_MAX_CALL_STACK" yaml:"max_call_stack" toml:"max_call_stack"`
	ChromePath    string   `envconfig:"PREVIEW_CHROME_PATH" yaml:"chrome_path" toml:"chrome_path"`

	BreakerThreshold int      `envconfig:"PREVIEW_BREAKER_THRESHOLD" yaml:"breaker_threshold" toml:"breaker_threshold"`
	BreakerCooldown  Duration `envconfig:"PREVIEW_BREAKER_COOLDOWN" yaml:"breaker_cooldown" toml:"breaker_cooldown"`
}

// Duration is a time.Duration that decodes from "500ms" style text in
// environment variables, YAML and TOML alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load builds configuration from defaults, then an optional YAML or TOML
// file, then environment variables. An empty path falls back to
// $LIVEPEN_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Storage: StorageConfig{
			Backend: "file",
			Dir:     filepath.Join(os.TempDir(), "livepen"),
		},
		Preview: PreviewConfig{
			Debounce:      Duration(500 * time.Millisecond),
			Engine:        "sandbox",
			ScriptTimeout: Duration(5 * time.Second),
			MaxCallStack:  1024,

			BreakerThreshold: 3,
			BreakerCooldown:  Duration(30 * time.Second),
		},
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	switch c.Storage.Backend {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir is required for the file backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Preview.Engine {
	case "sandbox", "chrome":
	default:
		return fmt.Errorf("unknown preview engine %q", c.Preview.Engine)
	}
	if c.Preview.Debounce < 0 {
		return fmt.Errorf("preview debounce must not be negative")
	}
	if c.Preview.ScriptTimeout <= 0 {
		return fmt.Errorf("preview script timeout must be positive")
	}
	return nil
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
