package api

import (
	"github.com/JaimeStill/insight/internal/config"
	"github.com/JaimeStill/insight/internal/infrastructure"
	"github.com/JaimeStill/insight/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Pipeline   config.PipelineConfig
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle:  infra.Lifecycle,
			Logger:     infra.Logger.With("module", "api"),
			Database:   infra.Database,
			Cache:      infra.Cache,
			Storage:    infra.Storage,
			Completion: infra.Completion,
			Telemetry:  infra.Telemetry,
		},
		Pagination: cfg.API.Pagination,
		Pipeline:   cfg.Pipeline,
	}
}
