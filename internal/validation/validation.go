// Package validation normalizes and sanity-checks the monetary fields of
// query results before they are trusted by the insight pipeline.
package validation

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/currency"
)

// DefaultThreshold is the confidence at or above which corrected data is trusted.
const DefaultThreshold = 0.8

var financialTerms = []string{"total", "amount", "spend", "cost", "value", "sum", "avg", "reporting"}

// Range bounds the acceptable values of one field.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Context scopes a validation run.
type Context struct {
	Operation string             `json:"operation"`
	Source    sources.DataSource `json:"data_source"`
	Ranges    map[string]Range   `json:"ranges,omitempty"`
}

// Correction records one field-level fix.
type Correction struct {
	Row       int    `json:"row"`
	Field     string `json:"field"`
	Original  any    `json:"original"`
	Corrected any    `json:"corrected"`
	Reason    string `json:"reason"`
}

// Result is the outcome of one validation pass.
type Result struct {
	IsValid       bool           `json:"is_valid"`
	Confidence    float64        `json:"confidence"`
	CorrectedData []executor.Row `json:"corrected_data"`
	Corrections   []Correction   `json:"corrections"`
	Warnings      []string       `json:"warnings"`
}

// IsFinancial reports whether a field name denotes a monetary value.
func IsFinancial(field string) bool {
	name := strings.ToLower(field)
	for _, term := range financialTerms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

type tally struct {
	values      int
	corrections int
	suspicious  int
	unparseable int
	outOfRange  int
}

func (t tally) confidence() float64 {
	if t.values == 0 {
		return 1
	}
	n := float64(t.values)
	c := 1 -
		0.15*float64(t.corrections)/n -
		0.6*float64(t.suspicious)/n -
		0.5*float64(t.unparseable)/n -
		0.3*float64(t.outOfRange)/n
	return math.Max(0, math.Min(1, c))
}

// Validate parses every financial field of rows through the currency parser.
// Values whose parsed form differs from the raw form are corrected and recorded.
// Zero amounts written with a currency symbol are kept as-is and reported as
// warnings. The input rows are never modified.
func Validate(rows []executor.Row, vctx Context) Result {
	out := make([]executor.Row, len(rows))
	var t tally
	result := Result{
		Corrections: make([]Correction, 0),
		Warnings:    make([]string, 0),
	}

	for i, row := range rows {
		corrected := maps.Clone(row)
		for _, field := range sortedFields(row) {
			if !IsFinancial(field) {
				continue
			}
			raw := row[field]
			if raw == nil {
				continue
			}
			t.values++

			value, fix, err := parseStrict(raw)
			if err != nil {
				t.unparseable++
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: %s: unparseable amount %q", i, field, fmt.Sprint(raw)))
				continue
			}

			if value == 0 && hasSymbol(raw) {
				t.suspicious++
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: %s: zero amount %q may indicate an aggregation error", i, field, fmt.Sprint(raw)))
				continue
			}

			if _, ok := raw.(string); ok {
				corrected[field] = value
			}
			if fix {
				t.corrections++
				result.Corrections = append(result.Corrections, Correction{
					Row:       i,
					Field:     field,
					Original:  raw,
					Corrected: value,
					Reason:    "currency normalization",
				})
			}

			if r, ok := vctx.Ranges[field]; ok && (value < r.Min || value > r.Max) {
				t.outOfRange++
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: %s: %v outside expected range [%v, %v]", i, field, value, r.Min, r.Max))
			}
		}
		out[i] = corrected
	}

	result.CorrectedData = out
	result.Confidence = t.confidence()
	result.IsValid = t.suspicious == 0 && t.unparseable == 0
	return result
}

// Correct is the secondary, more aggressive pass. It parses remaining text
// amounts leniently (European separators, currency codes, trailing minus) and
// rebuilds zero aggregates from sibling fields: avg = total / count and
// total = avg * count. The repaired rows are then validated again; the returned
// result carries the repairs followed by any corrections of the re-validation.
func Correct(rows []executor.Row, vctx Context) Result {
	repaired := make([]executor.Row, len(rows))
	repairs := make([]Correction, 0)

	for i, row := range rows {
		fixed := maps.Clone(row)
		for _, field := range sortedFields(row) {
			if !IsFinancial(field) {
				continue
			}
			raw, ok := row[field].(string)
			if !ok {
				continue
			}
			value, err := currency.ParseLenient(raw)
			if err != nil || value == 0 {
				continue
			}
			if sameNumber(raw, value) {
				fixed[field] = value
				continue
			}
			fixed[field] = value
			repairs = append(repairs, Correction{
				Row: i, Field: field, Original: raw, Corrected: value,
				Reason: "lenient currency parse",
			})
		}
		repairs = append(repairs, recomputeAggregates(i, fixed)...)
		repaired[i] = fixed
	}

	result := Validate(repaired, vctx)
	result.Corrections = append(repairs, result.Corrections...)
	return result
}

func recomputeAggregates(i int, row executor.Row) []Correction {
	var fixes []Correction

	count, countOK := countField(row)
	if !countOK || count <= 0 {
		return nil
	}

	totalField, total, totalOK := findAggregate(row, "total", "sum")
	avgField, avg, avgOK := findAggregate(row, "avg", "average")

	if avgOK && avg == 0 && totalOK && total != 0 {
		v := total / count
		fixes = append(fixes, Correction{
			Row: i, Field: avgField, Original: row[avgField], Corrected: v,
			Reason: "recomputed from total and count",
		})
		row[avgField] = v
	}
	if totalOK && total == 0 && avgOK && avg != 0 {
		v := avg * count
		fixes = append(fixes, Correction{
			Row: i, Field: totalField, Original: row[totalField], Corrected: v,
			Reason: "recomputed from average and count",
		})
		row[totalField] = v
	}

	return fixes
}

func countField(row executor.Row) (float64, bool) {
	for _, field := range sortedFields(row) {
		name := strings.ToLower(field)
		if !strings.Contains(name, "count") && !strings.Contains(name, "records") {
			continue
		}
		if v, _, err := currency.Normalize(row[field]); err == nil {
			return v, true
		}
	}
	return 0, false
}

func findAggregate(row executor.Row, terms ...string) (string, float64, bool) {
	for _, field := range sortedFields(row) {
		name := strings.ToLower(field)
		if !IsFinancial(field) || !slices.ContainsFunc(terms, func(t string) bool {
			return strings.Contains(name, t)
		}) {
			continue
		}
		raw := row[field]
		if s, ok := raw.(string); ok {
			if v, err := currency.ParseLenient(s); err == nil {
				return field, v, true
			}
			continue
		}
		if v, _, err := currency.Normalize(raw); err == nil {
			return field, v, true
		}
	}
	return "", 0, false
}

// parseStrict parses raw and reports whether the parsed value differs from
// the raw representation.
func parseStrict(raw any) (float64, bool, error) {
	switch v := raw.(type) {
	case string:
		f, err := currency.Parse(v)
		if err != nil {
			return 0, false, err
		}
		return f, !sameNumber(v, f), nil
	default:
		f, _, err := currency.Normalize(raw)
		return f, false, err
	}
}

// sameNumber reports whether raw is a plain numeric literal equal to f.
func sameNumber(raw string, f float64) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil && v == f
}

func hasSymbol(raw any) bool {
	s, ok := raw.(string)
	return ok && currency.HasSymbol(s)
}

func sortedFields(row executor.Row) []string {
	return slices.Sorted(maps.Keys(row))
}
