package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/JaimeStill/insight/pkg/handlers"
	"github.com/JaimeStill/insight/pkg/routes"
	"github.com/JaimeStill/insight/pkg/storage"
)

var exportTypes = map[string]string{
	".json": "application/json",
	".md":   "text/markdown; charset=utf-8",
}

type exportHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newExportHandler(store storage.System, logger *slog.Logger) *exportHandler {
	return &exportHandler{
		store:  store,
		logger: logger.With("handler", "exports"),
	}
}

func (h *exportHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/exports",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{key...}", Handler: h.download},
		},
	}
}

func (h *exportHandler) download(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		handlers.RespondError(
			w, h.logger,
			http.StatusServiceUnavailable, storage.ErrDisabled,
		)
		return
	}

	key := r.PathValue("key")

	body, err := h.store.Get(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}
	defer body.Close()

	contentType, ok := exportTypes[path.Ext(key)]
	if !ok {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("export download interrupted", "key", key, "error", err)
	}
}
