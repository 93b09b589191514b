package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/handlers"
	"github.com/JaimeStill/insight/pkg/routes"
)

// Request is the body of an analysis call. DataSource is optional and
// bypasses classification when set. ConversationID is only carried into logs.
type Request struct {
	Query          string              `json:"query"`
	DataSource     *sources.DataSource `json:"data_source,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
}

// Handler exposes the router over HTTP.
type Handler struct {
	router *Router
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(r *Router, logger *slog.Logger) *Handler {
	return &Handler{
		router: r,
		logger: logger.With("handler", "analysis"),
	}
}

// Routes returns the route group definition for analysis endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/analysis",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Analyze},
			{Method: "POST", Pattern: "/stream", Handler: h.Stream},
		},
	}
}

// Analyze routes one question and returns its Result. Pipeline failures are
// reported in the body with a 200 status.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res := h.router.Route(r.Context(), req.Query, req.DataSource)
	handlers.RespondJSON(w, http.StatusOK, res)
}

// Stream routes one question and writes the progress and final events as
// server-sent events named after their type.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	stream, err := handlers.NewEventStream(w)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	for e := range h.router.Stream(r.Context(), req.Query, req.DataSource) {
		if err := stream.Send(string(e.Type), e); err != nil {
			h.logger.Warn("stream write failed", "event", e.Type, "error", err)
			return
		}
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = errors.Join(ErrInvalidRequest, err)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		err := fmt.Errorf("%w: query is required", ErrInvalidRequest)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return req, false
	}
	h.logger.DebugContext(r.Context(), "analysis requested",
		"conversation_id", req.ConversationID,
		"explicit_source", req.DataSource != nil,
	)
	return req, true
}
