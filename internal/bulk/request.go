// Package bulk runs batches of templated analyses through the router and
// records their findings, aggregates and lifecycle on a persisted job.
package bulk

import (
	"fmt"
	"slices"
	"time"

	"github.com/JaimeStill/insight/internal/sources"
)

// AnalysisType selects the template list of a bulk run.
type AnalysisType string

const (
	SpendAnalysis       AnalysisType = "spend_analysis"
	SupplierPerformance AnalysisType = "supplier_performance"
	RiskAssessment      AnalysisType = "risk_assessment"
	CostOptimization    AnalysisType = "cost_optimization"
	Comprehensive       AnalysisType = "comprehensive"
)

// Timeframe narrows every templated question to a period.
type Timeframe string

const (
	CurrentMonth   Timeframe = "current_month"
	CurrentQuarter Timeframe = "current_quarter"
	CurrentYear    Timeframe = "current_year"
	Last12Months   Timeframe = "last_12_months"
	Custom         Timeframe = "custom"
)

// Format is an export format for finished jobs.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

var (
	timeframes = []Timeframe{CurrentMonth, CurrentQuarter, CurrentYear, Last12Months, Custom}
	formats    = []Format{FormatJSON, FormatMarkdown}
)

// DateRange bounds a custom timeframe.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Request describes a bulk run.
type Request struct {
	UserID       string               `json:"user_id"`
	AnalysisType AnalysisType         `json:"analysis_type"`
	Timeframe    Timeframe            `json:"timeframe,omitempty"`
	DateRange    *DateRange           `json:"date_range,omitempty"`
	DataSources  []sources.DataSource `json:"data_sources,omitempty"`
	OutputFormat Format               `json:"output_format,omitempty"`
}

// Validate checks the request fields.
func (r *Request) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if _, ok := templates[r.AnalysisType]; !ok && r.AnalysisType != Comprehensive {
		return fmt.Errorf("%w: unknown analysis_type %q", ErrInvalidRequest, r.AnalysisType)
	}
	if r.Timeframe != "" && !slices.Contains(timeframes, r.Timeframe) {
		return fmt.Errorf("%w: unknown timeframe %q", ErrInvalidRequest, r.Timeframe)
	}
	if r.Timeframe == Custom {
		if r.DateRange == nil || r.DateRange.Start.IsZero() || r.DateRange.End.IsZero() {
			return fmt.Errorf("%w: custom timeframe requires date_range", ErrInvalidRequest)
		}
		if r.DateRange.End.Before(r.DateRange.Start) {
			return fmt.Errorf("%w: date_range ends before it starts", ErrInvalidRequest)
		}
	}
	for _, s := range r.DataSources {
		if _, err := sources.Parse(string(s)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	if r.OutputFormat != "" && !slices.Contains(formats, r.OutputFormat) {
		return fmt.Errorf("%w: unknown output_format %q", ErrInvalidRequest, r.OutputFormat)
	}
	return nil
}

func (r *Request) period() string {
	switch r.Timeframe {
	case CurrentMonth:
		return "for the current month"
	case CurrentQuarter:
		return "for the current quarter"
	case CurrentYear:
		return "for the current year"
	case Last12Months:
		return "for the last 12 months"
	case Custom:
		return fmt.Sprintf("between %s and %s",
			r.DateRange.Start.Format(time.DateOnly),
			r.DateRange.End.Format(time.DateOnly),
		)
	}
	return ""
}
