package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/insight/internal/api"
	"github.com/JaimeStill/insight/internal/config"
	"github.com/JaimeStill/insight/internal/infrastructure"
	"github.com/JaimeStill/insight/pkg/handlers"
	"github.com/JaimeStill/insight/pkg/module"
)

const checkTimeout = 2 * time.Second

type Modules struct {
	API    *module.Module
	Domain *api.Domain
	window time.Duration
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	runtime := api.NewRuntime(cfg, infra)

	domain, err := api.NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API:    api.NewModule(cfg, runtime, domain),
		Domain: domain,
		window: cfg.Pipeline.ActiveWindowDuration(),
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

// reportActive logs bulk jobs still unfinished inside the active window.
// They belong to other processes or to a previous run of this one.
func (m *Modules) reportActive(ctx context.Context, infra *infrastructure.Infrastructure) {
	active, err := m.Domain.Jobs.Active(ctx, m.window)
	if err != nil {
		infra.Logger.Warn("active job lookup failed", "error", err)
		return
	}
	if len(active) == 0 {
		return
	}

	ids := make([]string, 0, len(active))
	for _, j := range active {
		ids = append(ids, j.ID.String())
	}
	infra.Logger.Info("unfinished bulk jobs in active window",
		"count", len(active),
		"window", m.window,
		"job_ids", ids,
	)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}

		failures := infra.Lifecycle.RunChecks(r.Context(), checkTimeout)
		if len(failures) > 0 {
			checks := make(map[string]string, len(failures))
			for name, err := range failures {
				checks[name] = err.Error()
			}
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": checks,
			})
			return
		}

		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	router.HandleNative("GET /metrics", promhttp.Handler().ServeHTTP)

	return router
}
