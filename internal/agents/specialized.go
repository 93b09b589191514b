package agents

import (
	"context"

	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/sources"
)

// Specialized runs the full six-stage pipeline against one concrete source:
// reasoning, business narrative, synthesis, execution with fallback and
// validation, insights and report.
type Specialized struct {
	stages
	schema *sources.Schema
}

// NewSpecialized creates the agent owning a concrete source.
func NewSpecialized(source sources.DataSource, deps Deps) (*Specialized, error) {
	schema, err := lookup(source)
	if err != nil {
		return nil, err
	}
	if err := deps.check(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With("system", "agent", "agent", string(source))
	return &Specialized{stages: stages{Deps: deps}, schema: schema}, nil
}

// Name returns the data source the agent owns.
func (a *Specialized) Name() string {
	return string(a.schema.Source)
}

// Run executes the pipeline. Synthesis and execution failures end the run
// with an unsuccessful Result; reasoning, narrative and insight failures degrade.
func (a *Specialized) Run(ctx context.Context, query string, classification classifier.Result) (res Result, err error) {
	defer recoverRun(a.Name(), &err)
	state := pipeline.New(query, a.schema.Source, classification)

	a.Runner.Run(ctx, state,
		a.reasoning(),
		a.business(),
		a.synthesis(),
		a.execution(),
		a.insights(a.schema.Symbol),
		a.report(titleFor(query), a.schema.Symbol, a.schema.EntityLabel),
	)

	return result(a.Name(), state), nil
}
