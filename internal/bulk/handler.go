package bulk

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/insight/pkg/handlers"
	"github.com/JaimeStill/insight/pkg/routes"
)

// Handler provides HTTP endpoints for bulk insight runs.
type Handler struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(o *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		orchestrator: o,
		logger:       logger.With("handler", "bulk"),
	}
}

// Routes returns the route group definition for bulk endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/insights/bulk",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Run},
			{Method: "POST", Pattern: "/stream", Handler: h.Stream},
		},
	}
}

// Run executes a bulk request and returns the finished job.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	job, err := h.orchestrator.Run(r.Context(), req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

// Stream executes a bulk request and streams job snapshots as server-sent
// "job" events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	updates, err := h.orchestrator.Stream(r.Context(), req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	stream, err := handlers.NewEventStream(w)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	for job := range updates {
		if err := stream.Send("job", job); err != nil {
			h.logger.Warn("stream write failed", "job_id", job.ID, "error", err)
			return
		}
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidRequest, err))
		return req, false
	}
	return req, true
}
