// Package pipeline threads an append-only analysis state through an ordered
// list of stages, halting on the first stage error.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/fallback"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/validation"
)

var (
	// ErrFieldSet indicates a patch tried to overwrite a field an earlier stage produced.
	ErrFieldSet = errors.New("state field already set")
	// ErrHalted indicates a patch was applied to a state that already carries an error.
	ErrHalted = errors.New("pipeline halted")
)

// Reasoning is the five-part narrative explaining how a question will be answered.
type Reasoning struct {
	BusinessContext    string `json:"business_context"`
	DataSourceStrategy string `json:"data_source_strategy"`
	AnalyticalApproach string `json:"analytical_approach"`
	ExpectedFindings   string `json:"expected_findings"`
	ValueProposition   string `json:"value_proposition"`
}

// Insight is a single-sentence business finding.
type Insight struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Metric   string `json:"metric,omitempty"`
}

// Metric is one row of a report's metrics table.
type Metric struct {
	Label string  `json:"label"`
	Value string  `json:"value"`
	Raw   float64 `json:"raw"`
}

// Recommendation is one tiered action item.
type Recommendation struct {
	Horizon string `json:"horizon"`
	Text    string `json:"text"`
}

// Report is the formatted outcome of an analysis.
type Report struct {
	Title            string           `json:"title"`
	ExecutiveSummary string           `json:"executive_summary"`
	Metrics          []Metric         `json:"metrics"`
	Insights         []Insight        `json:"insights"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// StageError records the stage that halted the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// State accumulates stage output. Inputs are set at construction; every other
// field is written at most once through Apply. Once Err is set the state
// accepts no further patches and Output reports the error instead of data.
type State struct {
	Query          string             `json:"query"`
	Source         sources.DataSource `json:"data_source"`
	Classification classifier.Result  `json:"classification"`

	Reasoning         *Reasoning           `json:"reasoning,omitempty"`
	ReasoningTemplate bool                 `json:"reasoning_template,omitempty"`
	Business          string               `json:"business,omitempty"`
	SQL               string               `json:"sql,omitempty"`
	ExecutedSQL       string               `json:"executed_sql,omitempty"`
	Redirects         []sources.Redirect   `json:"redirects,omitempty"`
	Sources           []sources.DataSource `json:"sources_queried,omitempty"`
	Rows              []executor.Row       `json:"rows,omitempty"`
	Fallback          *fallback.Result     `json:"fallback,omitempty"`
	Review            *validation.Review   `json:"review,omitempty"`
	Insights          []Insight            `json:"insights,omitempty"`
	InsightsDegraded  bool                 `json:"insights_degraded,omitempty"`
	Report            *Report              `json:"report,omitempty"`

	Err *StageError `json:"-"`
}

// New creates the initial state for a question routed to source.
func New(query string, source sources.DataSource, classification classifier.Result) *State {
	return &State{
		Query:          query,
		Source:         source,
		Classification: classification,
	}
}

// Patch is the contribution of one stage. Zero-valued fields are ignored.
type Patch struct {
	Reasoning         *Reasoning
	ReasoningTemplate bool
	Business          string
	SQL               string
	ExecutedSQL       string
	Redirects         []sources.Redirect
	Sources           []sources.DataSource
	Rows              []executor.Row
	Fallback          *fallback.Result
	Review            *validation.Review
	Insights          []Insight
	InsightsDegraded  bool
	Report            *Report
}

// Apply merges p into s. It fails with ErrHalted once the state carries an
// error and with ErrFieldSet when p would overwrite an existing field; in
// both cases s is left unchanged.
func (s *State) Apply(p Patch) error {
	if s.Err != nil {
		return ErrHalted
	}

	conflicts := []struct {
		name string
		hit  bool
	}{
		{"reasoning", p.Reasoning != nil && s.Reasoning != nil},
		{"business", p.Business != "" && s.Business != ""},
		{"sql", p.SQL != "" && s.SQL != ""},
		{"executed_sql", p.ExecutedSQL != "" && s.ExecutedSQL != ""},
		{"redirects", p.Redirects != nil && s.Redirects != nil},
		{"sources", p.Sources != nil && s.Sources != nil},
		{"rows", p.Rows != nil && s.Rows != nil},
		{"fallback", p.Fallback != nil && s.Fallback != nil},
		{"review", p.Review != nil && s.Review != nil},
		{"insights", p.Insights != nil && s.Insights != nil},
		{"report", p.Report != nil && s.Report != nil},
	}
	for _, c := range conflicts {
		if c.hit {
			return fmt.Errorf("%w: %s", ErrFieldSet, c.name)
		}
	}

	if p.Reasoning != nil {
		s.Reasoning = p.Reasoning
		s.ReasoningTemplate = p.ReasoningTemplate
	}
	if p.Business != "" {
		s.Business = p.Business
	}
	if p.SQL != "" {
		s.SQL = p.SQL
	}
	if p.ExecutedSQL != "" {
		s.ExecutedSQL = p.ExecutedSQL
	}
	if p.Redirects != nil {
		s.Redirects = p.Redirects
	}
	if p.Sources != nil {
		s.Sources = p.Sources
	}
	if p.Rows != nil {
		s.Rows = p.Rows
	}
	if p.Fallback != nil {
		s.Fallback = p.Fallback
	}
	if p.Review != nil {
		s.Review = p.Review
	}
	if p.Insights != nil {
		s.Insights = p.Insights
		s.InsightsDegraded = p.InsightsDegraded
	}
	if p.Report != nil {
		s.Report = p.Report
	}
	return nil
}

// Output is the trusted view of a completed state. SQL is the statement that
// produced Rows: the routed or fallback rewrite when one ran, else the synthesized one.
type Output struct {
	Reasoning *Reasoning
	Business  string
	SQL       string
	Sources   []sources.DataSource
	Rows      []executor.Row
	Fallback  *fallback.Result
	Review    *validation.Review
	Insights  []Insight
	Report    *Report
}

// Output returns the business fields of s, or the stage error that halted it.
func (s *State) Output() (Output, error) {
	if s.Err != nil {
		return Output{}, s.Err
	}
	sql := s.ExecutedSQL
	if sql == "" {
		sql = s.SQL
	}
	return Output{
		Reasoning: s.Reasoning,
		Business:  s.Business,
		SQL:       sql,
		Sources:   s.Sources,
		Rows:      s.Rows,
		Fallback:  s.Fallback,
		Review:    s.Review,
		Insights:  s.Insights,
		Report:    s.Report,
	}, nil
}
