package config

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/insight/internal/telemetry"
	"github.com/JaimeStill/insight/pkg/cache"
	"github.com/JaimeStill/insight/pkg/completion"
	"github.com/JaimeStill/insight/pkg/database"
	"github.com/JaimeStill/insight/pkg/storage"
	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvInsightEnv             = "INSIGHT_ENV"
	EnvInsightShutdownTimeout = "INSIGHT_SHUTDOWN_TIMEOUT"
	EnvInsightVersion         = "INSIGHT_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "INSIGHT_DB_HOST",
	Port:            "INSIGHT_DB_PORT",
	Name:            "INSIGHT_DB_NAME",
	User:            "INSIGHT_DB_USER",
	Password:        "INSIGHT_DB_PASSWORD",
	SSLMode:         "INSIGHT_DB_SSL_MODE",
	MaxOpenConns:    "INSIGHT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "INSIGHT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "INSIGHT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "INSIGHT_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "INSIGHT_STORAGE_CONTAINER_NAME",
	ConnectionString: "INSIGHT_STORAGE_CONNECTION_STRING",
}

var cacheEnv = &cache.Env{
	Addr:        "INSIGHT_CACHE_ADDR",
	Password:    "INSIGHT_CACHE_PASSWORD",
	DB:          "INSIGHT_CACHE_DB",
	PoolSize:    "INSIGHT_CACHE_POOL_SIZE",
	TTL:         "INSIGHT_CACHE_TTL",
	DialTimeout: "INSIGHT_CACHE_DIAL_TIMEOUT",
	Prefix:      "INSIGHT_CACHE_PREFIX",
}

var completionEnv = &completion.Env{
	Provider:    "INSIGHT_COMPLETION_PROVIDER",
	BaseURL:     "INSIGHT_COMPLETION_BASE_URL",
	APIKey:      "INSIGHT_COMPLETION_API_KEY",
	APIVersion:  "INSIGHT_COMPLETION_API_VERSION",
	Model:       "INSIGHT_COMPLETION_MODEL",
	MaxTokens:   "INSIGHT_COMPLETION_MAX_TOKENS",
	Temperature: "INSIGHT_COMPLETION_TEMPERATURE",
	Timeout:     "INSIGHT_COMPLETION_TIMEOUT",
}

var telemetryEnv = &telemetry.Env{
	Endpoint:    "INSIGHT_OTEL_ENDPOINT",
	ServiceName: "INSIGHT_OTEL_SERVICE_NAME",
	Insecure:    "INSIGHT_OTEL_INSECURE",
}

// Config is the root configuration for the Insight service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	Cache           cache.Config      `toml:"cache"`
	Completion      completion.Config `toml:"completion"`
	Telemetry       telemetry.Config  `toml:"telemetry"`
	Pipeline        PipelineConfig    `toml:"pipeline"`
	API             APIConfig         `toml:"api"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the INSIGHT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvInsightEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Cache.Merge(&overlay.Cache)
	c.Completion.Merge(&overlay.Completion)
	c.Telemetry.Merge(&overlay.Telemetry)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Cache.Finalize(cacheEnv); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Completion.Finalize(completionEnv); err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	if err := c.Telemetry.Finalize(telemetryEnv); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvInsightShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvInsightVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvInsightEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
