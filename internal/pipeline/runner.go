package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/insight/internal/metrics"
	"github.com/JaimeStill/insight/internal/telemetry"
)

// Stage names a pipeline step.
type Stage string

const (
	StageReasoning Stage = "reasoning"
	StageBusiness  Stage = "business"
	StageSynthesis Stage = "synthesis"
	StageExecution Stage = "execution"
	StageInsights  Stage = "insights"
	StageReport    Stage = "report"
)

// Step is one named stage function.
type Step struct {
	Stage Stage
	Run   func(ctx context.Context, s *State) (Patch, error)
}

// Runner executes steps strictly in order.
type Runner struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{
		tracer: telemetry.Tracer("pipeline"),
		logger: logger.With("system", "pipeline"),
	}
}

// Run applies each step's patch to s in order and stops at the first step
// that returns an error, recording it as the state's StageError. A cancelled
// context halts the pipeline before the next step starts.
func (r *Runner) Run(ctx context.Context, s *State, steps ...Step) *State {
	for _, step := range steps {
		if s.Err != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			s.Err = &StageError{Stage: step.Stage, Err: err}
			break
		}
		r.run(ctx, s, step)
	}
	return s
}

func (r *Runner) run(ctx context.Context, s *State, step Step) {
	ctx, span := r.tracer.Start(ctx, "stage "+string(step.Stage),
		trace.WithAttributes(
			attribute.String("insight.stage", string(step.Stage)),
			attribute.String("insight.source", string(s.Source)),
		),
	)
	defer span.End()

	start := time.Now()
	patch, err := step.Run(ctx, s)
	if err == nil {
		err = s.Apply(patch)
	}
	duration := time.Since(start)
	metrics.StageDuration.WithLabelValues(string(step.Stage)).Observe(duration.Seconds())

	if err != nil {
		s.Err = &StageError{Stage: step.Stage, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.StageFailures.WithLabelValues(string(step.Stage)).Inc()
		r.logger.WarnContext(ctx, "stage failed",
			"stage", step.Stage,
			"source", s.Source,
			"duration", duration,
			"error", err,
		)
		return
	}

	r.logger.DebugContext(ctx, "stage complete",
		"stage", step.Stage,
		"source", s.Source,
		"duration", duration,
	)
}
