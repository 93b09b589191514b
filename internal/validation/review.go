package validation

import (
	"strconv"

	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/metrics"
)

// Pass names which validation pass produced the returned rows.
type Pass string

const (
	PassPrimary    Pass = "primary"
	PassCorrective Pass = "corrective"
)

// Review is the outcome of the full validation policy.
type Review struct {
	Rows    []executor.Row `json:"rows"`
	Result  Result         `json:"result"`
	Pass    Pass           `json:"pass"`
	Flagged bool           `json:"flagged"`
}

// Engine applies the validate, correct, flag policy with a trust threshold.
type Engine struct {
	threshold float64
}

// NewEngine creates an Engine. A non-positive threshold selects DefaultThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Threshold returns the confidence required to trust corrected data.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Review validates rows and trusts the corrected data when the result is valid
// and meets the threshold. Otherwise the corrective pass runs over the original
// rows; if that also falls short, the currency-normalized rows are returned
// with Flagged set.
func (e *Engine) Review(rows []executor.Row, vctx Context) Review {
	first := Validate(rows, vctx)
	if e.trusted(first) {
		record(PassPrimary, true)
		return Review{Rows: first.CorrectedData, Result: first, Pass: PassPrimary}
	}
	record(PassPrimary, false)

	second := Correct(rows, vctx)
	if e.trusted(second) {
		record(PassCorrective, true)
		return Review{Rows: second.CorrectedData, Result: second, Pass: PassCorrective}
	}
	record(PassCorrective, false)

	return Review{
		Rows:    second.CorrectedData,
		Result:  second,
		Pass:    PassCorrective,
		Flagged: true,
	}
}

func (e *Engine) trusted(r Result) bool {
	return r.IsValid && r.Confidence >= e.threshold
}

func record(pass Pass, trusted bool) {
	metrics.ValidationPasses.WithLabelValues(string(pass), strconv.FormatBool(trusted)).Inc()
}
