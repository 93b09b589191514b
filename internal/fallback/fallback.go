// Package fallback recovers failed query executions by escalating through
// distinct rewrite strategies chosen from the category of the error.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/metrics"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/completion"
)

// MaxAttempts bounds the number of rewrites per failed execution.
const MaxAttempts = 3

// EvidenceRows bounds the sample rows attached to a result.
const EvidenceRows = 10

// Result is the outcome of one fallback attempt, or of a full recovery.
type Result struct {
	Success      bool               `json:"success"`
	Attempt      int                `json:"attempt"`
	FallbackType Strategy           `json:"fallback_type"`
	Category     Category           `json:"category"`
	SQL          string             `json:"sql,omitempty"`
	Redirects    []sources.Redirect `json:"redirects,omitempty"`
	Results      []executor.Row     `json:"results,omitempty"`
	Evidence     []executor.Row     `json:"evidence,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Service creates fallback sessions.
type Service struct {
	exec     executor.Executor
	client   completion.Client
	rowLimit int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for period predicates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRowLimit sets the row cap for row-limited and aggregate rewrites.
func WithRowLimit(n int) Option {
	return func(s *Service) { s.rowLimit = n }
}

// New creates a Service over an executor and completion client.
func New(exec executor.Executor, client completion.Client, logger *slog.Logger, opts ...Option) *Service {
	if client == nil {
		client = completion.Unavailable
	}
	s := &Service{
		exec:     exec,
		client:   client,
		rowLimit: 100,
		now:      defaultNow,
		logger:   logger.With("system", "fallback"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session tracks the strategies tried while recovering one failed query.
type Session struct {
	svc      *Service
	source   sources.DataSource
	schema   *sources.Schema
	original string
	question string
	tried    []Strategy
	execErr  string
}

// NewSession starts recovery of original, the statement that failed for question.
func (s *Service) NewSession(source sources.DataSource, original, question string) (*Session, error) {
	schema, err := sources.Lookup(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSchemaOwner, err)
	}
	return &Session{
		svc:      s,
		source:   source,
		schema:   schema,
		original: original,
		question: question,
	}, nil
}

// Recover runs attempts 1 through MaxAttempts until one succeeds. Each failed
// attempt's error message selects the strategy of the next. When every attempt
// fails the returned result has Success false and wraps ErrExhausted.
func (s *Service) Recover(ctx context.Context, source sources.DataSource, original, question, errMsg string) Result {
	session, err := s.NewSession(source, original, question)
	if err != nil {
		return Result{Category: Categorize(errMsg), Error: err.Error()}
	}
	return session.Recover(ctx, errMsg)
}

// Recover drives the remaining attempts of the session. Only execution
// errors re-categorize later attempts; a rewrite that could not be produced
// leaves the previous execution error in charge.
func (ss *Session) Recover(ctx context.Context, errMsg string) Result {
	var last Result
	for n := len(ss.tried) + 1; n <= MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			last.Success = false
			last.Error = err.Error()
			return last
		}
		last = ss.Attempt(ctx, errMsg, n)
		if last.Success {
			return last
		}
		if ss.execErr != "" {
			errMsg = ss.execErr
		}
	}
	last.Success = false
	last.Error = fmt.Errorf("%w: %s", ErrExhausted, last.Error).Error()
	return last
}

// Tried returns the strategies attempted so far, in order.
func (ss *Session) Tried() []Strategy {
	return slices.Clone(ss.tried)
}

// Attempt runs attempt n, which must be the next attempt of the session.
// The strategy is the first untried entry of the error category's plan,
// falling back to any untried strategy.
func (ss *Session) Attempt(ctx context.Context, errMsg string, n int) Result {
	category := Categorize(errMsg)
	result := Result{Attempt: n, Category: category}

	if n != len(ss.tried)+1 || n > MaxAttempts {
		result.Error = fmt.Sprintf("%s: attempt %d after %d", ErrOutOfOrder, n, len(ss.tried))
		return result
	}

	strategy, ok := ss.next(category)
	if !ok {
		result.Error = ErrNoStrategy.Error()
		return result
	}
	ss.tried = append(ss.tried, strategy)
	result.FallbackType = strategy

	logger := ss.svc.logger.With(
		"source", ss.source,
		"attempt", n,
		"category", category,
		"strategy", strategy,
	)

	sql, err := ss.rewrite(ctx, strategy, errMsg)
	if err != nil {
		return ss.fail(ctx, logger, result, err)
	}

	routed, redirects, err := ss.schema.Route(sql)
	if err != nil {
		result.SQL = sql
		return ss.fail(ctx, logger, result, err)
	}
	result.SQL = routed
	result.Redirects = redirects

	rows, err := ss.svc.exec.Execute(ctx, ss.source, routed)
	if err != nil {
		ss.execErr = err.Error()
		return ss.fail(ctx, logger, result, err)
	}

	result.Success = true
	result.Results = rows
	result.Evidence = rows[:min(len(rows), EvidenceRows)]

	metrics.FallbackAttempts.WithLabelValues(string(category), string(strategy), "success").Inc()
	logger.InfoContext(ctx, "fallback attempt succeeded", "rows", len(rows))
	return result
}

func (ss *Session) next(category Category) (Strategy, bool) {
	for _, s := range Plan(category) {
		if !slices.Contains(ss.tried, s) {
			return s, true
		}
	}
	for _, s := range strategies {
		if !slices.Contains(ss.tried, s) {
			return s, true
		}
	}
	return "", false
}

func (ss *Session) fail(ctx context.Context, logger *slog.Logger, result Result, err error) Result {
	result.Error = err.Error()
	metrics.FallbackAttempts.WithLabelValues(string(result.Category), string(result.FallbackType), "failure").Inc()
	logger.WarnContext(ctx, "fallback attempt failed", "error", err)
	return result
}
