package jobs

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/insight/pkg/handlers"
	"github.com/JaimeStill/insight/pkg/pagination"
	"github.com/JaimeStill/insight/pkg/routes"
)

// Handler provides HTTP endpoints for job lookups.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
	window     time.Duration
}

// NewHandler creates a Handler. window bounds the active jobs listing.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config, window time.Duration) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "jobs"),
		pagination: pagination,
		window:     window,
	}
}

// Routes returns the route group definition for job endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/jobs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/active", Handler: h.Active},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
		},
	}
}

// Find returns a single job by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	job, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

// List returns a page of a user's jobs, newest first. user_id is required.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidRequest, errors.New("user_id is required")))
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	result, err := h.sys.ListByUser(r.Context(), userID, page)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Active returns unfinished jobs inside the active window.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.sys.Active(r.Context(), h.window)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, jobs)
}
