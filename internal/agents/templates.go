package agents

import (
	"fmt"

	"github.com/JaimeStill/insight/internal/classifier"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/sources"
)

var systemNames = map[sources.DataSource]string{
	sources.Coupa: "Coupa invoice",
	sources.Baan:  "Baan purchase order",
}

func templateReasoning(query string, schema *sources.Schema, analysis classifier.AnalysisType) *pipeline.Reasoning {
	system := systemNames[schema.Source]
	return &pipeline.Reasoning{
		BusinessContext: fmt.Sprintf(
			"The question %q asks for a %s view of procurement activity.",
			query, analysisLabel(analysis),
		),
		DataSourceStrategy: fmt.Sprintf(
			"%s data is the system of record for this question; amounts are reported in %s.",
			system, schema.Currency,
		),
		AnalyticalApproach: fmt.Sprintf(
			"Aggregate %s by %s for the current period and rank the results by amount.",
			schema.AmountColumn, schema.EntityColumn,
		),
		ExpectedFindings: fmt.Sprintf(
			"A ranked view of %s with totals, record counts and averages that highlights concentration.",
			schema.EntityLabel,
		),
		ValueProposition: "The result supports sourcing decisions, budget tracking and negotiation priorities.",
	}
}

func templateBusiness(query string, schema *sources.Schema, r *pipeline.Reasoning) string {
	text := fmt.Sprintf(
		"This analysis answers %q using %s data. Results are grouped by %s and expressed in %s.",
		query, systemNames[schema.Source], schema.EntityLabel, schema.Currency,
	)
	if r != nil {
		text += "\n\n" + r.ExpectedFindings
	}
	return text
}

func placeholderInsight(text string) pipeline.Insight {
	return pipeline.Insight{Text: text, Category: "financial"}
}

func analysisLabel(a classifier.AnalysisType) string {
	switch a {
	case classifier.SpendAnalysis:
		return "spend"
	case classifier.SupplierAnalysis:
		return "supplier"
	case classifier.TrendAnalysis:
		return "trend"
	case classifier.RiskAssessment:
		return "risk"
	case classifier.CostOptimization:
		return "cost optimization"
	default:
		return "general"
	}
}
