// Package agents implements the per-source analysis pipelines: specialized
// agents for each concrete data source and a generic agent for the combined
// and last-resort paths.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/fallback"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/validation"
	"github.com/JaimeStill/insight/pkg/completion"
)

// Agent answers one question against its data source(s). Pipeline failures
// are reported in Result; the error return is reserved for failures outside
// the pipeline's control.
type Agent interface {
	Name() string
	Run(ctx context.Context, query string, classification classifier.Result) (Result, error)
}

// Result is the outcome of an agent run.
type Result struct {
	Success   bool                 `json:"success"`
	Agent     string               `json:"agent"`
	Source    sources.DataSource   `json:"data_source"`
	Response  string               `json:"response"`
	SQL       string               `json:"sql,omitempty"`
	Sources   []sources.DataSource `json:"sources_queried,omitempty"`
	Rows      []executor.Row       `json:"rows,omitempty"`
	Reasoning *pipeline.Reasoning  `json:"reasoning,omitempty"`
	Insights  []pipeline.Insight   `json:"insights,omitempty"`
	Report    *pipeline.Report     `json:"report,omitempty"`
	Review    *validation.Review   `json:"validation,omitempty"`
	Fallback  *fallback.Result     `json:"fallback,omitempty"`
	Stage     pipeline.Stage       `json:"failed_stage,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Deps are the collaborators shared by every agent.
type Deps struct {
	Client     completion.Client
	Executor   executor.Executor
	Fallback   *fallback.Service
	Validation *validation.Engine
	Runner     *pipeline.Runner
	Now        func() time.Time
	Logger     *slog.Logger
}

func (d *Deps) check() error {
	if d.Executor == nil || d.Fallback == nil || d.Validation == nil || d.Runner == nil || d.Logger == nil {
		return ErrMissingDependency
	}
	if d.Client == nil {
		d.Client = completion.Unavailable
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return nil
}

// New returns the specialized agent for a concrete source and the generic
// agent for the combined path.
func New(source sources.DataSource, deps Deps) (Agent, error) {
	if source == sources.Combined {
		return NewGeneric(sources.Combined, deps)
	}
	return NewSpecialized(source, deps)
}

func result(name string, s *pipeline.State) Result {
	r := Result{Agent: name, Source: s.Source}

	out, err := s.Output()
	if err != nil {
		r.Error = err.Error()
		r.Stage = s.Err.Stage
		return r
	}

	r.Success = true
	r.SQL = out.SQL
	r.Sources = out.Sources
	r.Rows = out.Rows
	r.Reasoning = out.Reasoning
	r.Insights = out.Insights
	r.Report = out.Report
	r.Review = out.Review
	r.Fallback = out.Fallback
	r.Response = out.Business
	if r.Response == "" && out.Report != nil {
		r.Response = out.Report.ExecutiveSummary
	}
	return r
}

func lookup(source sources.DataSource) (*sources.Schema, error) {
	schema, err := sources.Lookup(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConcrete, err)
	}
	return schema, nil
}

func recoverRun(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %s: %v", ErrPanic, name, r)
	}
}
