package agents

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/validation"
	"github.com/JaimeStill/insight/pkg/currency"
)

// Metric labels of the fixed report table.
const (
	MetricTotalAmount      = "Total Amount"
	MetricRecordCount      = "Record Count"
	MetricUniqueEntities   = "Unique Entities"
	MetricAveragePerEntity = "Average per Entity"
)

// EntityTotal is one entity's share of the total amount.
type EntityTotal struct {
	Entity string  `json:"entity"`
	Amount float64 `json:"amount"`
}

// Summary holds aggregate metrics derived directly from result rows.
type Summary struct {
	TotalAmount      float64       `json:"total_amount"`
	RecordCount      int           `json:"record_count"`
	UniqueEntities   int           `json:"unique_entities"`
	AveragePerEntity float64       `json:"average_per_entity"`
	Top              []EntityTotal `json:"top"`
}

// Summarize computes aggregate metrics from rows. The amount of a row is read
// from the first present column of amountCols, else its first financial
// column that is not an average. Aggregated rows contribute their
// record_count; detail rows count once each.
func Summarize(rows []executor.Row, amountCols []string, entityCol string) Summary {
	var s Summary
	perEntity := make(map[string]float64)

	for i, row := range rows {
		amount, _ := amountOf(row, amountCols)
		s.TotalAmount += amount

		if n, ok := recordsOf(row); ok {
			s.RecordCount += n
		} else {
			s.RecordCount++
		}

		entity, ok := row[entityCol]
		if !ok || entity == nil {
			entity = fmt.Sprintf("row %d", i+1)
		}
		perEntity[fmt.Sprint(entity)] += amount
	}

	s.UniqueEntities = len(perEntity)
	if s.UniqueEntities > 0 {
		s.AveragePerEntity = s.TotalAmount / float64(s.UniqueEntities)
	}

	for _, name := range slices.Sorted(maps.Keys(perEntity)) {
		s.Top = append(s.Top, EntityTotal{Entity: name, Amount: perEntity[name]})
	}
	slices.SortStableFunc(s.Top, func(a, b EntityTotal) int {
		return cmp.Compare(b.Amount, a.Amount)
	})
	s.Top = s.Top[:min(len(s.Top), 5)]

	return s
}

// Share returns the fraction of the total held by the n largest entities.
func (s Summary) Share(n int) float64 {
	if s.TotalAmount == 0 {
		return 0
	}
	var top float64
	for _, e := range s.Top[:min(n, len(s.Top))] {
		top += e.Amount
	}
	return top / s.TotalAmount
}

// Headline is a one-sentence statement of the summary.
func (s Summary) Headline(symbol string) string {
	return fmt.Sprintf("%d records across %d entities total %s, an average of %s per entity.",
		s.RecordCount, s.UniqueEntities,
		currency.Format(s.TotalAmount, symbol),
		currency.Format(s.AveragePerEntity, symbol),
	)
}

// Describe renders the summary for prompt context.
func (s Summary) Describe(symbol string) string {
	var b strings.Builder
	b.WriteString(s.Headline(symbol))
	for _, e := range s.Top {
		fmt.Fprintf(&b, "\n- %s: %s", e.Entity, currency.Format(e.Amount, symbol))
	}
	return b.String()
}

// Metrics returns the fixed-shape metrics table.
func (s Summary) Metrics(symbol string) []pipeline.Metric {
	return []pipeline.Metric{
		{Label: MetricTotalAmount, Value: currency.Format(s.TotalAmount, symbol), Raw: s.TotalAmount},
		{Label: MetricRecordCount, Value: fmt.Sprintf("%d", s.RecordCount), Raw: float64(s.RecordCount)},
		{Label: MetricUniqueEntities, Value: fmt.Sprintf("%d", s.UniqueEntities), Raw: float64(s.UniqueEntities)},
		{Label: MetricAveragePerEntity, Value: currency.Format(s.AveragePerEntity, symbol), Raw: s.AveragePerEntity},
	}
}

// BuildReport assembles the report from the summary so the metrics table and
// recommendations stay consistent with the data regardless of narrative text.
func BuildReport(title string, s Summary, insights []pipeline.Insight, symbol, entityLabel string, flagged bool) *pipeline.Report {
	if entityLabel == "" {
		entityLabel = "entities"
	}

	summary := fmt.Sprintf("Analysis of %d records across %d %s totaling %s, averaging %s per entity.",
		s.RecordCount, s.UniqueEntities, entityLabel,
		currency.Format(s.TotalAmount, symbol),
		currency.Format(s.AveragePerEntity, symbol),
	)
	if len(s.Top) > 0 && s.TotalAmount != 0 {
		summary += fmt.Sprintf(" %s is the largest at %.1f%% of the total.", s.Top[0].Entity, s.Share(1)*100)
	}
	if flagged {
		summary += " Some figures failed validation and should be verified before use."
	}

	return &pipeline.Report{
		Title:            title,
		ExecutiveSummary: summary,
		Metrics:          s.Metrics(symbol),
		Insights:         insights,
		Recommendations:  recommendations(s, symbol, entityLabel),
	}
}

func recommendations(s Summary, symbol, entityLabel string) []pipeline.Recommendation {
	var immediate string
	switch {
	case len(s.Top) == 0 || s.TotalAmount == 0:
		immediate = "Confirm that the reporting period contains posted transactions before acting on this analysis."
	case s.Share(1) >= 0.3:
		immediate = fmt.Sprintf(
			"Review exposure to %s, which holds %.1f%% of %s; confirm contract terms and identify a secondary source.",
			s.Top[0].Entity, s.Share(1)*100, currency.Format(s.TotalAmount, symbol),
		)
	default:
		immediate = fmt.Sprintf(
			"Validate pricing with the top %d %s, which together hold %.1f%% of %s.",
			min(3, len(s.Top)), entityLabel, s.Share(3)*100, currency.Format(s.TotalAmount, symbol),
		)
	}

	target := s.TotalAmount * 0.05
	shortTerm := fmt.Sprintf(
		"Consolidate volume across the %d %s and target a 5%% reduction, about %s against the %s average per entity.",
		s.UniqueEntities, entityLabel, currency.Format(target, symbol), currency.Format(s.AveragePerEntity, symbol),
	)

	longTerm := fmt.Sprintf(
		"Track these %d records quarterly and keep any single %s below 25%% of total spend to limit concentration risk.",
		s.RecordCount, strings.TrimSuffix(entityLabel, "s"),
	)

	return []pipeline.Recommendation{
		{Horizon: "immediate", Text: immediate},
		{Horizon: "short_term", Text: shortTerm},
		{Horizon: "long_term", Text: longTerm},
	}
}

func amountOf(row executor.Row, cols []string) (float64, bool) {
	for _, col := range cols {
		if v, ok := row[col]; ok && v != nil {
			if f, _, err := currency.Normalize(v); err == nil {
				return f, true
			}
		}
	}
	for _, field := range slices.Sorted(maps.Keys(row)) {
		lower := strings.ToLower(field)
		if !validation.IsFinancial(field) || strings.Contains(lower, "avg") || strings.Contains(lower, "average") {
			continue
		}
		if f, _, err := currency.Normalize(row[field]); err == nil {
			return f, true
		}
	}
	return 0, false
}

func recordsOf(row executor.Row) (int, bool) {
	for _, field := range []string{"record_count", "records", "count", "line_count", "order_count", "invoice_count"} {
		if v, ok := row[field]; ok && v != nil {
			if f, _, err := currency.Normalize(v); err == nil {
				return int(f), true
			}
		}
	}
	return 0, false
}
