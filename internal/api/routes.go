package api

import (
	"net/http"

	"github.com/JaimeStill/insight/internal/bulk"
	"github.com/JaimeStill/insight/internal/jobs"
	"github.com/JaimeStill/insight/internal/router"
	"github.com/JaimeStill/insight/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		router.NewHandler(domain.Router, runtime.Logger).Routes(),
		bulk.NewHandler(domain.Bulk, runtime.Logger).Routes(),
		jobs.NewHandler(
			domain.Jobs,
			runtime.Logger,
			runtime.Pagination,
			runtime.Pipeline.ActiveWindowDuration(),
		).Routes(),
		newExportHandler(runtime.Storage, runtime.Logger).routes(),
	)
}
