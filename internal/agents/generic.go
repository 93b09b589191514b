package agents

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/validation"
)

// Agent names reported by the generic agent.
const (
	NameCombined = "combined"
	NameSimple   = "simple"
)

// SourceField tags merged rows with the source that produced them.
const SourceField = "data_source"

// Generic is the reduced pipeline used for the combined path and as the
// router's last resort: no reasoning trace and no separate narrative.
// For the combined source it synthesizes and executes one query per concrete
// source and merges the rows.
type Generic struct {
	stages
	source sources.DataSource
}

// NewGeneric creates a generic agent bound to source.
func NewGeneric(source sources.DataSource, deps Deps) (*Generic, error) {
	if _, err := sources.Parse(string(source)); err != nil {
		return nil, err
	}
	if err := deps.check(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With("system", "agent", "agent", "generic", "source", string(source))
	return &Generic{stages: stages{Deps: deps}, source: source}, nil
}

// Name returns "combined" for the combined source and "simple" otherwise.
func (a *Generic) Name() string {
	if a.source == sources.Combined {
		return NameCombined
	}
	return NameSimple
}

// Run executes the reduced pipeline.
func (a *Generic) Run(ctx context.Context, query string, classification classifier.Result) (res Result, err error) {
	defer recoverRun(a.Name(), &err)
	state := pipeline.New(query, a.source, classification)
	title := titleFor(query)

	if a.source != sources.Combined {
		schema, lerr := lookup(a.source)
		if lerr != nil {
			return Result{}, lerr
		}
		a.Runner.Run(ctx, state,
			a.synthesis(),
			a.execution(),
			a.insights(schema.Symbol),
			a.report(title, schema.Symbol, schema.EntityLabel),
		)
		return result(a.Name(), state), nil
	}

	a.Runner.Run(ctx, state,
		a.gather(),
		a.insights("$"),
		a.report(title, "$", "suppliers"),
	)
	return result(a.Name(), state), nil
}

// gather runs synthesis and execution for every concrete source and merges
// the successful results. It fails only when no source produced rows.
func (a *Generic) gather() pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageExecution, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		var (
			statements []string
			queried    []sources.DataSource
			merged     = make([]executor.Row, 0)
			redirects  []sources.Redirect
			errs       []error
		)

		for _, source := range sources.Concrete() {
			sub := pipeline.New(s.Query, source, s.Classification)
			a.Runner.Run(ctx, sub, a.synthesis(), a.rawExecution())

			out, err := sub.Output()
			if err != nil {
				a.Logger.WarnContext(ctx, "combined source failed", "source", source, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", source, err))
				continue
			}

			statements = append(statements, fmt.Sprintf("-- %s\n%s", source, out.SQL))
			queried = append(queried, source)
			redirects = append(redirects, sub.Redirects...)
			for _, row := range out.Rows {
				tagged := maps.Clone(row)
				tagged[SourceField] = string(source)
				merged = append(merged, tagged)
			}
		}

		if len(statements) == 0 {
			return pipeline.Patch{}, errors.Join(errs...)
		}

		review := a.Validation.Review(merged, validation.Context{
			Operation: "agent.combined",
			Source:    sources.Combined,
		})

		return pipeline.Patch{
			SQL:       strings.Join(statements, ";\n\n"),
			Redirects: redirects,
			Sources:   queried,
			Rows:      review.Rows,
			Review:    &review,
		}, nil
	}}
}

// rawExecution executes without validation; the merged rows are validated once.
func (a *Generic) rawExecution() pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageExecution, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		return a.execute(ctx, s.Source, s.SQL, s.Query)
	}}
}
