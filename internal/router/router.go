// Package router classifies analytical questions, dispatches them to the
// agent owning the data source and normalizes every outcome into a Result.
// Route never fails: agent errors and panics fall back to the simple agent,
// and a failure there produces an unsuccessful zero-confidence Result.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/insight/internal/agents"
	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/fallback"
	"github.com/JaimeStill/insight/internal/metrics"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/telemetry"
	"github.com/JaimeStill/insight/internal/validation"
)

// SimpleConfidence is reported when the simple agent answered after the
// dispatched agent failed.
const SimpleConfidence = 30

// Result is the normalized outcome of one routed question.
type Result struct {
	Success        bool                 `json:"success"`
	Response       string               `json:"response"`
	SQLQuery       string               `json:"sql_query,omitempty"`
	SourcesQueried []sources.DataSource `json:"sources_queried,omitempty"`
	QueryResults   []executor.Row       `json:"query_results,omitempty"`
	Insights       []pipeline.Insight   `json:"insights,omitempty"`
	Evidence       []executor.Row       `json:"evidence,omitempty"`
	Report         *pipeline.Report     `json:"report,omitempty"`
	Reasoning      *pipeline.Reasoning  `json:"reasoning,omitempty"`
	Validation     *validation.Review   `json:"validation,omitempty"`
	Fallback       *fallback.Result     `json:"fallback,omitempty"`
	Error          string               `json:"error,omitempty"`
	AgentUsed      string               `json:"agent_used"`
	ExecutionTime  int64                `json:"execution_time"`
	Confidence     int                  `json:"confidence"`
	Classification classifier.Result    `json:"classification"`
}

// Classifier assigns a data source to a question.
type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

// QuickClassifier picks only a data source. Routers built WithQuickRouting
// use it in place of Classify when the classifier supports it.
type QuickClassifier interface {
	QuickClassify(ctx context.Context, text string) sources.DataSource
}

// Router dispatches questions to agents.
type Router struct {
	classifier Classifier
	agents     map[sources.DataSource]agents.Agent
	simple     agents.Agent
	quick      bool
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithAgent replaces the agent dispatched for source.
func WithAgent(source sources.DataSource, a agents.Agent) Option {
	return func(r *Router) { r.agents[source] = a }
}

// WithSimple replaces the last-resort agent.
func WithSimple(a agents.Agent) Option {
	return func(r *Router) { r.simple = a }
}

// WithQuickRouting classifies with QuickClassify, trading reasoning and key
// terms for one short completion.
func WithQuickRouting() Option {
	return func(r *Router) { r.quick = true }
}

// New builds the dispatch table: a specialized agent per concrete source, the
// generic agent for combined and the generic agent over coupa as last resort.
func New(cls Classifier, deps agents.Deps, logger *slog.Logger, opts ...Option) (*Router, error) {
	r := &Router{
		classifier: cls,
		agents:     make(map[sources.DataSource]agents.Agent, len(sources.All())),
		tracer:     telemetry.Tracer("router"),
		logger:     logger.With("system", "router"),
	}

	for _, source := range sources.All() {
		a, err := agents.New(source, deps)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", source, err)
		}
		r.agents[source] = a
	}

	simple, err := agents.NewGeneric(sources.Coupa, deps)
	if err != nil {
		return nil, fmt.Errorf("simple agent: %w", err)
	}
	r.simple = simple

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Route classifies query, or uses explicit when given, and runs the matching
// agent. It never panics: classifier panics degrade to heuristics and
// dispatch panics become a failed Result.
func (r *Router) Route(ctx context.Context, query string, explicit *sources.DataSource) Result {
	start := time.Now()
	classification := r.classify(ctx, query, explicit)
	return r.safeDispatch(ctx, query, classification, start)
}

func (r *Router) classify(ctx context.Context, query string, explicit *sources.DataSource) (res classifier.Result) {
	if explicit != nil {
		if _, err := sources.Parse(string(*explicit)); err == nil {
			return classifier.Explicit(*explicit)
		}
		r.logger.WarnContext(ctx, "ignoring invalid explicit source", "source", *explicit)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "classifier panicked, using heuristics", "panic", rec)
			res = classifier.Default(query)
		}
	}()

	if r.quick {
		if q, ok := r.classifier.(QuickClassifier); ok {
			return classifier.Quick(query, q.QuickClassify(ctx, query))
		}
	}
	return r.classifier.Classify(ctx, query)
}

func (r *Router) safeDispatch(ctx context.Context, query string, classification classifier.Result, start time.Time) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "routing panicked", "panic", rec)
			res = failed(classification, fmt.Sprintf("%v: router: %v", agents.ErrPanic, rec), start)
		}
	}()
	return r.dispatch(ctx, query, classification, start)
}

func (r *Router) agentFor(source sources.DataSource) agents.Agent {
	if a, ok := r.agents[source]; ok {
		return a
	}
	return r.simple
}

func (r *Router) dispatch(ctx context.Context, query string, classification classifier.Result, start time.Time) Result {
	agent := r.agentFor(classification.DataSource)

	ctx, span := r.tracer.Start(ctx, "route",
		trace.WithAttributes(
			attribute.String("insight.source", string(classification.DataSource)),
			attribute.String("insight.agent", agent.Name()),
			attribute.Int("insight.confidence", classification.Confidence),
		),
	)
	defer span.End()

	res, err := run(ctx, agent, query, classification)
	if err == nil {
		return r.finish(ctx, span, normalize(res, classification, classification.Confidence, agent.Name(), start))
	}

	r.logger.WarnContext(ctx, "agent failed, using simple agent",
		"agent", agent.Name(),
		"source", classification.DataSource,
		"error", err,
	)
	span.RecordError(err)

	res, err = run(ctx, r.simple, query, classification)
	if err == nil {
		return r.finish(ctx, span, normalize(res, classification, SimpleConfidence, agents.NameSimple, start))
	}

	r.logger.ErrorContext(ctx, "simple agent failed", "error", err)
	span.RecordError(err)
	return r.finish(ctx, span, failed(classification, err.Error(), start))
}

// failed is the terminal Result when no agent produced an answer.
func failed(classification classifier.Result, msg string, start time.Time) Result {
	return Result{
		Success:        false,
		Response:       "The question could not be answered.",
		Error:          msg,
		AgentUsed:      agents.NameSimple,
		ExecutionTime:  time.Since(start).Milliseconds(),
		Confidence:     0,
		Classification: classification,
	}
}

func (r *Router) finish(ctx context.Context, span trace.Span, res Result) Result {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, res.Error)
	}
	metrics.RoutedQueries.WithLabelValues(res.AgentUsed, outcome).Inc()
	metrics.RouteDuration.WithLabelValues(res.AgentUsed).Observe(float64(res.ExecutionTime) / 1000)

	r.logger.InfoContext(ctx, "query routed",
		"agent", res.AgentUsed,
		"success", res.Success,
		"confidence", res.Confidence,
		"duration_ms", res.ExecutionTime,
	)
	return res
}

func run(ctx context.Context, a agents.Agent, query string, classification classifier.Result) (res agents.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", agents.ErrPanic, a.Name(), rec)
		}
	}()
	return a.Run(ctx, query, classification)
}

func normalize(res agents.Result, classification classifier.Result, confidence int, agentUsed string, start time.Time) Result {
	out := Result{
		Success:        res.Success,
		Response:       res.Response,
		SQLQuery:       res.SQL,
		SourcesQueried: res.Sources,
		QueryResults:   res.Rows,
		Insights:       res.Insights,
		Report:         res.Report,
		Reasoning:      res.Reasoning,
		Validation:     res.Review,
		Fallback:       res.Fallback,
		Error:          res.Error,
		AgentUsed:      agentUsed,
		ExecutionTime:  time.Since(start).Milliseconds(),
		Confidence:     confidence,
		Classification: classification,
	}
	if len(res.Rows) > 0 {
		out.Evidence = res.Rows[:min(len(res.Rows), fallback.EvidenceRows)]
	}
	if !out.Success && out.Response == "" {
		out.Response = fmt.Sprintf("The %s agent could not answer the question.", agentUsed)
	}
	return out
}
