package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvPipelineClassifyTimeout     = "INSIGHT_PIPELINE_CLASSIFY_TIMEOUT"
	EnvPipelineQueryTimeout        = "INSIGHT_PIPELINE_QUERY_TIMEOUT"
	EnvPipelineMaxRows             = "INSIGHT_PIPELINE_MAX_ROWS"
	EnvPipelineValidationThreshold = "INSIGHT_PIPELINE_VALIDATION_THRESHOLD"
	EnvPipelineBulkParallelism     = "INSIGHT_PIPELINE_BULK_PARALLELISM"
	EnvPipelineActiveWindow        = "INSIGHT_PIPELINE_ACTIVE_WINDOW"
	EnvPipelineExportPrefix        = "INSIGHT_PIPELINE_EXPORT_PREFIX"
	EnvPipelineQuickRouting        = "INSIGHT_PIPELINE_QUICK_ROUTING"
)

// PipelineConfig bounds the analysis pipeline: per-call timeouts, result size,
// the validation trust threshold and bulk execution parallelism. QuickRouting
// classifies with a source-only completion instead of the full classification.
type PipelineConfig struct {
	ClassifyTimeout     string  `toml:"classify_timeout"`
	QueryTimeout        string  `toml:"query_timeout"`
	MaxRows             int     `toml:"max_rows"`
	ValidationThreshold float64 `toml:"validation_threshold"`
	BulkParallelism     int     `toml:"bulk_parallelism"`
	ActiveWindow        string  `toml:"active_window"`
	ExportPrefix        string  `toml:"export_prefix"`
	QuickRouting        bool    `toml:"quick_routing"`
}

// ClassifyTimeoutDuration returns ClassifyTimeout as a time.Duration.
func (c *PipelineConfig) ClassifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClassifyTimeout)
	return d
}

// QueryTimeoutDuration returns QueryTimeout as a time.Duration.
func (c *PipelineConfig) QueryTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.QueryTimeout)
	return d
}

// ActiveWindowDuration returns ActiveWindow as a time.Duration.
func (c *PipelineConfig) ActiveWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.ActiveWindow)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.ClassifyTimeout != "" {
		c.ClassifyTimeout = overlay.ClassifyTimeout
	}
	if overlay.QueryTimeout != "" {
		c.QueryTimeout = overlay.QueryTimeout
	}
	if overlay.MaxRows != 0 {
		c.MaxRows = overlay.MaxRows
	}
	if overlay.ValidationThreshold != 0 {
		c.ValidationThreshold = overlay.ValidationThreshold
	}
	if overlay.BulkParallelism != 0 {
		c.BulkParallelism = overlay.BulkParallelism
	}
	if overlay.ActiveWindow != "" {
		c.ActiveWindow = overlay.ActiveWindow
	}
	if overlay.ExportPrefix != "" {
		c.ExportPrefix = overlay.ExportPrefix
	}
	if overlay.QuickRouting {
		c.QuickRouting = true
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.ClassifyTimeout == "" {
		c.ClassifyTimeout = "15s"
	}
	if c.QueryTimeout == "" {
		c.QueryTimeout = "30s"
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 1000
	}
	if c.ValidationThreshold == 0 {
		c.ValidationThreshold = 0.8
	}
	if c.BulkParallelism <= 0 {
		c.BulkParallelism = 4
	}
	if c.ActiveWindow == "" {
		c.ActiveWindow = "24h"
	}
	if c.ExportPrefix == "" {
		c.ExportPrefix = "exports"
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineClassifyTimeout); v != "" {
		c.ClassifyTimeout = v
	}
	if v := os.Getenv(EnvPipelineQueryTimeout); v != "" {
		c.QueryTimeout = v
	}
	if v := os.Getenv(EnvPipelineMaxRows); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRows = n
		}
	}
	if v := os.Getenv(EnvPipelineValidationThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ValidationThreshold = f
		}
	}
	if v := os.Getenv(EnvPipelineBulkParallelism); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BulkParallelism = n
		}
	}
	if v := os.Getenv(EnvPipelineActiveWindow); v != "" {
		c.ActiveWindow = v
	}
	if v := os.Getenv(EnvPipelineExportPrefix); v != "" {
		c.ExportPrefix = v
	}
	if v := os.Getenv(EnvPipelineQuickRouting); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.QuickRouting = b
		}
	}
}

func (c *PipelineConfig) validate() error {
	if _, err := time.ParseDuration(c.ClassifyTimeout); err != nil {
		return fmt.Errorf("invalid classify_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.QueryTimeout); err != nil {
		return fmt.Errorf("invalid query_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.ActiveWindow); err != nil {
		return fmt.Errorf("invalid active_window: %w", err)
	}
	if c.ValidationThreshold <= 0 || c.ValidationThreshold > 1 {
		return fmt.Errorf("validation_threshold must be in (0, 1]")
	}
	return nil
}
