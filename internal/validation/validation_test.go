package validation_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/validation"
)

var vctx = validation.Context{Operation: "test", Source: sources.Coupa}

func TestIsFinancial(t *testing.T) {
	tests := []struct {
		field string
		want  bool
	}{
		{"total_amount", true},
		{"TotalSpend", true},
		{"avg_cost", true},
		{"reporting_total", true},
		{"record_count", false},
		{"supplier_name", false},
	}

	for _, tt := range tests {
		if got := validation.IsFinancial(tt.field); got != tt.want {
			t.Errorf("IsFinancial(%q) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestValidateCorrectsCurrencyStrings(t *testing.T) {
	rows := []executor.Row{
		{"supplier_name": "Acme", "total_amount": "$1,234.56"},
		{"supplier_name": "Globex", "total_amount": "($500.00)"},
	}

	r := validation.Validate(rows, vctx)

	if !r.IsValid {
		t.Errorf("expected valid result, warnings: %v", r.Warnings)
	}
	if len(r.Corrections) != 2 {
		t.Fatalf("corrections: got %d, want 2", len(r.Corrections))
	}
	if got := r.CorrectedData[0]["total_amount"]; got != 1234.56 {
		t.Errorf("row 0 total_amount: got %v, want 1234.56", got)
	}
	if got := r.CorrectedData[1]["total_amount"]; got != -500.0 {
		t.Errorf("row 1 total_amount: got %v, want -500", got)
	}
	if rows[0]["total_amount"] != "$1,234.56" {
		t.Error("input rows were modified")
	}
}

func TestValidatePlainNumbersAreNotCorrections(t *testing.T) {
	rows := []executor.Row{
		{"total_amount": "1234.5", "avg_amount": 12.5, "record_count": int64(3)},
	}

	r := validation.Validate(rows, vctx)

	if len(r.Corrections) != 0 {
		t.Errorf("corrections: got %v, want none", r.Corrections)
	}
	if r.Confidence != 1 {
		t.Errorf("confidence: got %v, want 1", r.Confidence)
	}
	if got := r.CorrectedData[0]["total_amount"]; got != 1234.5 {
		t.Errorf("numeric string should normalize to float, got %v", got)
	}
}

func TestValidateSuspiciousZero(t *testing.T) {
	rows := []executor.Row{
		{"total_amount": "$0.00", "record_count": 4},
	}

	r := validation.Validate(rows, vctx)

	if r.IsValid {
		t.Error("suspicious zero should invalidate the result")
	}
	if len(r.Corrections) != 0 {
		t.Errorf("suspicious zero must not be auto-corrected, got %v", r.Corrections)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "zero amount") {
		t.Errorf("warnings: got %v", r.Warnings)
	}
	if r.CorrectedData[0]["total_amount"] != "$0.00" {
		t.Errorf("raw value should be kept, got %v", r.CorrectedData[0]["total_amount"])
	}
	if r.Confidence >= validation.DefaultThreshold {
		t.Errorf("confidence %v should fall below threshold", r.Confidence)
	}
}

func TestValidatePlainZeroIsNotSuspicious(t *testing.T) {
	r := validation.Validate([]executor.Row{{"total_amount": 0.0}}, vctx)
	if !r.IsValid || len(r.Warnings) != 0 {
		t.Errorf("plain zero flagged: %+v", r)
	}
}

func TestValidateUnparseable(t *testing.T) {
	r := validation.Validate([]executor.Row{{"total_amount": "n/a"}}, vctx)
	if r.IsValid {
		t.Error("unparseable amount should invalidate the result")
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings: got %v", r.Warnings)
	}
}

func TestValidateRanges(t *testing.T) {
	ctx := validation.Context{
		Operation: "test",
		Source:    sources.Baan,
		Ranges:    map[string]validation.Range{"reporting_total": {Min: 0, Max: 1000}},
	}
	rows := []executor.Row{
		{"reporting_total": 50.0},
		{"reporting_total": 5000.0},
	}

	r := validation.Validate(rows, ctx)

	if len(r.Warnings) != 1 {
		t.Fatalf("warnings: got %v, want 1", r.Warnings)
	}
	if r.Confidence >= 1 {
		t.Errorf("out of range value should lower confidence, got %v", r.Confidence)
	}
}

func TestValidateIdempotent(t *testing.T) {
	rows := []executor.Row{
		{"supplier_name": "Acme", "total_amount": "$1,234.56", "avg_amount": "$0.00"},
		{"supplier_name": "Globex", "total_amount": "2,000", "avg_amount": 100.0},
		{"supplier_name": "Initech", "total_amount": "oops", "avg_amount": "(12.00)"},
	}

	first := validation.Validate(rows, vctx)
	second := validation.Validate(first.CorrectedData, vctx)

	if len(second.Corrections) != 0 {
		t.Errorf("second pass corrections: got %v, want none", second.Corrections)
	}
	if second.Confidence < first.Confidence {
		t.Errorf("confidence decreased: first %v, second %v", first.Confidence, second.Confidence)
	}
}

func TestConfidenceBounds(t *testing.T) {
	rows := []executor.Row{
		{"total_amount": "$0.00", "avg_amount": "bad"},
	}
	r := validation.Validate(rows, vctx)
	if r.Confidence < 0 || r.Confidence > 1 {
		t.Errorf("confidence out of bounds: %v", r.Confidence)
	}
}

func TestCorrectRecomputesAverage(t *testing.T) {
	rows := []executor.Row{
		{"total_amount": "$1,000.00", "avg_amount": "$0.00", "record_count": int64(4)},
	}

	r := validation.Correct(rows, vctx)

	if got := r.CorrectedData[0]["avg_amount"]; got != 250.0 {
		t.Errorf("avg_amount: got %v, want 250", got)
	}
	if !r.IsValid {
		t.Errorf("expected valid result after correction, warnings: %v", r.Warnings)
	}
	if len(r.Corrections) == 0 {
		t.Error("expected recorded corrections")
	}
}

func TestCorrectRecomputesTotal(t *testing.T) {
	rows := []executor.Row{
		{"total_amount": "$0.00", "avg_amount": 25.0, "record_count": 8},
	}

	r := validation.Correct(rows, vctx)

	if got := r.CorrectedData[0]["total_amount"]; got != 200.0 {
		t.Errorf("total_amount: got %v, want 200", got)
	}
}

func TestCorrectLenientFormats(t *testing.T) {
	rows := []executor.Row{
		{"total_amount": "1.234,56 €"},
	}

	r := validation.Correct(rows, vctx)

	if got := r.CorrectedData[0]["total_amount"]; got != 1234.56 {
		t.Errorf("total_amount: got %v, want 1234.56", got)
	}
}

func TestEngineReview(t *testing.T) {
	engine := validation.NewEngine(0)

	t.Run("trusted on primary pass", func(t *testing.T) {
		rv := engine.Review([]executor.Row{{"total_amount": "$10.00"}}, vctx)
		if rv.Pass != validation.PassPrimary || rv.Flagged {
			t.Errorf("got pass %s flagged %v", rv.Pass, rv.Flagged)
		}
	})

	t.Run("recovered by corrective pass", func(t *testing.T) {
		rows := []executor.Row{
			{"total_amount": "$900.00", "avg_amount": "$0.00", "record_count": 3},
		}
		rv := engine.Review(rows, vctx)
		if rv.Pass != validation.PassCorrective {
			t.Errorf("pass: got %s, want corrective", rv.Pass)
		}
		if rv.Flagged {
			t.Error("corrected data should be trusted")
		}
		if rv.Rows[0]["avg_amount"] != 300.0 {
			t.Errorf("avg_amount: got %v", rv.Rows[0]["avg_amount"])
		}
	})

	t.Run("flagged when both passes fall short", func(t *testing.T) {
		rows := []executor.Row{{"total_amount": "$0.00"}}
		rv := engine.Review(rows, vctx)
		if !rv.Flagged {
			t.Error("expected flagged review")
		}
		if len(rv.Rows) != 1 {
			t.Errorf("rows: got %d, want 1", len(rv.Rows))
		}
	})
}

func TestNewEngineThreshold(t *testing.T) {
	if got := validation.NewEngine(0).Threshold(); got != validation.DefaultThreshold {
		t.Errorf("default threshold: got %v", got)
	}
	if got := validation.NewEngine(0.9).Threshold(); got != 0.9 {
		t.Errorf("custom threshold: got %v", got)
	}
}
