package classifier

import (
	"slices"
	"strings"

	"github.com/JaimeStill/insight/internal/sources"
)

var keywords = map[sources.DataSource][]string{
	sources.Coupa: {
		"coupa", "invoice", "invoices", "commodity", "commodities", "cost center",
		"gl account", "general ledger", "approval", "approved", "supplier spend",
	},
	sources.Baan: {
		"baan", "purchase order", "purchase orders", "po ", "erp", "item group",
		"business unit", "fiscal", "ordered quantity",
	},
}

var combinedCues = []string{"both systems", "all systems", "across systems", "combined", "coupa and baan", "baan and coupa"}

var analysisCues = []struct {
	analysis AnalysisType
	cues     []string
}{
	{RiskAssessment, []string{"risk", "concentration", "dependency", "single source", "exposure"}},
	{CostOptimization, []string{"saving", "savings", "optimiz", "reduce", "consolidat"}},
	{TrendAnalysis, []string{"trend", "over time", "month over month", "growth", "monthly", "quarterly"}},
	{SupplierAnalysis, []string{"supplier", "vendor", "partner"}},
	{SpendAnalysis, []string{"spend", "spent", "total", "cost", "amount"}},
}

// Heuristic picks a data source from keyword matches. Questions that name
// several systems, hit both keyword sets or match nothing go to the combined path.
func Heuristic(text string) sources.DataSource {
	lower := " " + strings.ToLower(text) + " "

	coupa := countMatches(lower, keywords[sources.Coupa])
	baan := countMatches(lower, keywords[sources.Baan])

	switch {
	case countMatches(lower, combinedCues) > 0:
		return sources.Combined
	case coupa > 0 && baan == 0:
		return sources.Coupa
	case baan > 0 && coupa == 0:
		return sources.Baan
	default:
		return sources.Combined
	}
}

// Default is the low-confidence classification used when the completion
// capability cannot answer.
func Default(text string) Result {
	return Result{
		DataSource:   Heuristic(text),
		Confidence:   DefaultConfidence,
		Reasoning:    "classified by keyword heuristics",
		KeyTerms:     matchedTerms(text),
		AnalysisType: inferAnalysisType(text),
	}
}

// Quick wraps a source picked by QuickClassify. Reasoning and key terms are
// left empty; the analysis type comes from keyword cues.
func Quick(text string, source sources.DataSource) Result {
	return Result{
		DataSource:   source,
		Confidence:   QuickConfidence,
		Reasoning:    "",
		KeyTerms:     []string{},
		AnalysisType: inferAnalysisType(text),
	}
}

func inferAnalysisType(text string) AnalysisType {
	lower := strings.ToLower(text)
	for _, c := range analysisCues {
		if countMatches(lower, c.cues) > 0 {
			return c.analysis
		}
	}
	return General
}

func matchedTerms(text string) []string {
	lower := " " + strings.ToLower(text) + " "
	terms := make([]string, 0)
	for _, source := range sources.Concrete() {
		for _, kw := range keywords[source] {
			kw = strings.TrimSpace(kw)
			if strings.Contains(lower, kw) && !slices.Contains(terms, kw) {
				terms = append(terms, kw)
			}
		}
	}
	return terms
}

func countMatches(text string, cues []string) int {
	n := 0
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			n++
		}
	}
	return n
}
