package bulk

import (
	"fmt"
	"slices"

	"github.com/JaimeStill/insight/internal/sources"
)

// Priorities of an insight section.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Template is one question of a bulk analysis.
type Template struct {
	Query    string             `json:"query"`
	Source   sources.DataSource `json:"data_source"`
	Category string             `json:"category"`
	Priority string             `json:"priority"`
	Title    string             `json:"title"`
}

var order = []AnalysisType{SpendAnalysis, SupplierPerformance, RiskAssessment, CostOptimization}

var templates = map[AnalysisType][]Template{
	SpendAnalysis: {
		{"Show total invoice spend by supplier for the top suppliers", sources.Coupa, "financial", PriorityHigh, "Top Supplier Spend"},
		{"Show invoice spend by commodity", sources.Coupa, "financial", PriorityMedium, "Spend by Commodity"},
		{"Show monthly invoice spend trend", sources.Coupa, "financial", PriorityLow, "Monthly Spend Trend"},
		{"Show purchase order spend by business unit", sources.Baan, "financial", PriorityMedium, "Spend by Business Unit"},
		{"Compare supplier spend across Coupa and Baan", sources.Combined, "strategic", PriorityHigh, "Cross-System Supplier Spend"},
	},
	SupplierPerformance: {
		{"Show invoice count and average invoice amount by supplier", sources.Coupa, "performance", PriorityHigh, "Supplier Invoice Activity"},
		{"Show purchase order count and average order value by supplier", sources.Baan, "performance", PriorityMedium, "Supplier Order Activity"},
		{"Show suppliers with the most pending or voided invoices", sources.Coupa, "performance", PriorityMedium, "Invoice Exceptions by Supplier"},
	},
	RiskAssessment: {
		{"Show the share of total spend held by the top 5 suppliers", sources.Coupa, "risk", PriorityCritical, "Supplier Concentration"},
		{"Show item groups that are ordered from a single supplier", sources.Baan, "risk", PriorityHigh, "Single-Source Item Groups"},
		{"Show high-spend suppliers that appear in only one purchasing system", sources.Combined, "risk", PriorityMedium, "System Coverage Gaps"},
	},
	CostOptimization: {
		{"Show commodities whose spend is spread across many suppliers", sources.Coupa, "procurement", PriorityHigh, "Fragmented Commodities"},
		{"Show item groups ordered from multiple suppliers with their average prices", sources.Baan, "procurement", PriorityMedium, "Price Variance by Item Group"},
		{"Show tail suppliers with less than 1% of total invoice spend", sources.Coupa, "strategic", PriorityMedium, "Tail Spend"},
		{"Show suppliers used in both Coupa and Baan with their combined spend", sources.Combined, "strategic", PriorityHigh, "Consolidation Opportunities"},
	},
}

// Templates returns the template list of an analysis type. Comprehensive is
// the concatenation of every other type in a fixed order.
func Templates(t AnalysisType) ([]Template, error) {
	if t == Comprehensive {
		var all []Template
		for _, o := range order {
			all = append(all, templates[o]...)
		}
		return all, nil
	}

	list, ok := templates[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown analysis_type %q", ErrInvalidRequest, t)
	}
	return slices.Clone(list), nil
}

// Expand turns a request into its ordered query tuples: the templates of the
// analysis type, filtered to the requested data sources, with the timeframe
// appended to each question.
func Expand(req Request) ([]Template, error) {
	list, err := Templates(req.AnalysisType)
	if err != nil {
		return nil, err
	}

	if len(req.DataSources) > 0 {
		list = slices.DeleteFunc(list, func(t Template) bool {
			return !slices.Contains(req.DataSources, t.Source)
		})
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: no analyses match the requested data sources", ErrInvalidRequest)
		}
	}

	if period := req.period(); period != "" {
		for i := range list {
			list[i].Query += " " + period
		}
	}
	return list, nil
}
