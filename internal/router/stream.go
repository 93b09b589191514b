package router

import (
	"context"
	"fmt"
	"time"

	"github.com/JaimeStill/insight/internal/agents"
	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/sources"
)

// EventType distinguishes stream events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventFinal    EventType = "final"
)

// Event is one streamed update. Progress events carry the classification;
// the final event carries the Result.
type Event struct {
	Type           EventType          `json:"type"`
	Message        string             `json:"message,omitempty"`
	Classification *classifier.Result `json:"classification,omitempty"`
	Result         *Result            `json:"result,omitempty"`
}

// Stream routes query like Route and reports progress on the returned channel:
// one progress event once the question is classified, then the final result.
// The channel is closed after the final event, or early when ctx is cancelled.
func (r *Router) Stream(ctx context.Context, query string, explicit *sources.DataSource) <-chan Event {
	events := make(chan Event, 1)

	go func() {
		defer close(events)
		start := time.Now()
		progressed := false

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			r.logger.ErrorContext(ctx, "stream panicked", "panic", rec)
			classification := classifier.Default(query)
			if !progressed && !send(ctx, events, progressEvent(classification)) {
				return
			}
			res := failed(classification, fmt.Sprintf("%v: stream: %v", agents.ErrPanic, rec), start)
			send(ctx, events, Event{Type: EventFinal, Result: &res})
		}()

		classification := r.classify(ctx, query, explicit)
		if !send(ctx, events, progressEvent(classification)) {
			return
		}
		progressed = true

		res := r.safeDispatch(ctx, query, classification, start)
		send(ctx, events, Event{Type: EventFinal, Result: &res})
	}()

	return events
}

func progressEvent(classification classifier.Result) Event {
	return Event{
		Type:           EventProgress,
		Message:        "classified question, running " + string(classification.DataSource) + " analysis",
		Classification: &classification,
	}
}

func send(ctx context.Context, events chan<- Event, e Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- e:
		return true
	}
}
