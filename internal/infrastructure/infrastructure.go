// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, cache, storage, completion)
// that domain systems require.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/insight/internal/config"
	"github.com/JaimeStill/insight/internal/telemetry"
	"github.com/JaimeStill/insight/pkg/cache"
	"github.com/JaimeStill/insight/pkg/completion"
	"github.com/JaimeStill/insight/pkg/database"
	"github.com/JaimeStill/insight/pkg/lifecycle"
	"github.com/JaimeStill/insight/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Storage is nil when no connection string is configured; exports are skipped.
type Infrastructure struct {
	Lifecycle  *lifecycle.Coordinator
	Logger     *slog.Logger
	Database   database.System
	Cache      cache.System
	Storage    storage.System
	Completion completion.Client
	Telemetry  telemetry.Shutdown
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil && !errors.Is(err, storage.ErrDisabled) {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	if errors.Is(err, storage.ErrDisabled) {
		logger.Warn("storage not configured, report exports disabled")
	}

	llm, err := completion.New(&cfg.Completion, logger)
	if err != nil {
		return nil, fmt.Errorf("completion init failed: %w", err)
	}

	shutdown, err := telemetry.Init(context.Background(), &cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:  lc,
		Logger:     logger,
		Database:   db,
		Cache:      cache.New(&cfg.Cache, logger),
		Storage:    store,
		Completion: llm,
		Telemetry:  shutdown,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Cache.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("cache start failed: %w", err)
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}

	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		if err := i.Telemetry(context.Background()); err != nil {
			i.Logger.Error("telemetry shutdown failed", "error", err)
		}
	})
	return nil
}
