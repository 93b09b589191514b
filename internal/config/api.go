package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/insight/pkg/middleware"
	"github.com/JaimeStill/insight/pkg/pagination"
)

// EnvAPIBasePath overrides the prefix the API module mounts under.
const EnvAPIBasePath = "INSIGHT_API_BASE_PATH"

var corsEnv = &middleware.CORSEnv{
	Enabled:          "INSIGHT_CORS_ENABLED",
	Origins:          "INSIGHT_CORS_ORIGINS",
	AllowedMethods:   "INSIGHT_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "INSIGHT_CORS_ALLOWED_HEADERS",
	AllowCredentials: "INSIGHT_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "INSIGHT_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "INSIGHT_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "INSIGHT_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds the API mount point with its CORS and pagination settings.
type APIConfig struct {
	BasePath   string                `toml:"base_path"`
	CORS       middleware.CORSConfig `toml:"cors"`
	Pagination pagination.Config     `toml:"pagination"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if !strings.HasPrefix(c.BasePath, "/") || strings.Count(c.BasePath, "/") != 1 {
		return fmt.Errorf("base_path must be a single-level path such as /api: %q", c.BasePath)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
}
