package api

import (
	"fmt"

	"github.com/JaimeStill/insight/internal/agents"
	"github.com/JaimeStill/insight/internal/bulk"
	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/fallback"
	"github.com/JaimeStill/insight/internal/jobs"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/router"
	"github.com/JaimeStill/insight/internal/validation"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Router *router.Router
	Jobs   jobs.System
	Bulk   *bulk.Orchestrator
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) (*Domain, error) {
	pc := runtime.Pipeline

	exec := executor.New(
		runtime.Database.Connection(),
		pc.QueryTimeoutDuration(),
		pc.MaxRows,
		runtime.Logger,
	)

	deps := agents.Deps{
		Client:     runtime.Completion,
		Executor:   exec,
		Fallback:   fallback.New(exec, runtime.Completion, runtime.Logger),
		Validation: validation.NewEngine(pc.ValidationThreshold),
		Runner:     pipeline.NewRunner(runtime.Logger),
		Logger:     runtime.Logger,
	}

	cls := classifier.New(runtime.Completion, pc.ClassifyTimeoutDuration(), runtime.Logger)

	var routerOpts []router.Option
	if pc.QuickRouting {
		routerOpts = append(routerOpts, router.WithQuickRouting())
	}

	r, err := router.New(cls, deps, runtime.Logger, routerOpts...)
	if err != nil {
		return nil, fmt.Errorf("router init failed: %w", err)
	}

	jobsSystem := jobs.WithCache(
		jobs.NewRepository(
			runtime.Database.Connection(),
			runtime.Logger,
			runtime.Pagination,
		),
		runtime.Cache,
		runtime.Logger,
	)

	orchestrator := bulk.New(
		r,
		jobsSystem,
		runtime.Logger,
		bulk.WithParallelism(pc.BulkParallelism),
		bulk.WithExport(runtime.Storage, pc.ExportPrefix),
	)

	return &Domain{
		Router: r,
		Jobs:   jobsSystem,
		Bulk:   orchestrator,
	}, nil
}
