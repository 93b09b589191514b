// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/insight/internal/config"
	"github.com/JaimeStill/insight/pkg/middleware"
	"github.com/JaimeStill/insight/pkg/module"
)

// NewModule mounts the domain handlers under the configured base path with
// CORS and request logging middleware.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) *module.Module {
	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m
}
