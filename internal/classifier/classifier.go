// Package classifier maps free-text analytical questions to a data source,
// an analysis type and the key terms behind the decision.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/JaimeStill/insight/internal/prompts"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/completion"
	"github.com/JaimeStill/insight/pkg/formatting"
)

const (
	// ExplicitConfidence is reserved for user-selected data sources.
	ExplicitConfidence = 95
	// DefaultConfidence marks heuristic results produced without the completion capability.
	DefaultConfidence = 25
	// UnstructuredConfidence marks sources sniffed from a non-conforming response.
	UnstructuredConfidence = 50
	// QuickConfidence marks sources picked by QuickClassify.
	QuickConfidence = 60
)

// AnalysisType categorizes the analysis a question asks for.
type AnalysisType string

const (
	SpendAnalysis    AnalysisType = "spend_analysis"
	SupplierAnalysis AnalysisType = "supplier_analysis"
	TrendAnalysis    AnalysisType = "trend_analysis"
	RiskAssessment   AnalysisType = "risk_assessment"
	CostOptimization AnalysisType = "cost_optimization"
	General          AnalysisType = "general"
)

var analysisTypes = []AnalysisType{
	SpendAnalysis, SupplierAnalysis, TrendAnalysis, RiskAssessment, CostOptimization, General,
}

// ParseAnalysisType returns the matching analysis type, or General for unknown values.
func ParseAnalysisType(s string) AnalysisType {
	v := AnalysisType(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(analysisTypes, v) {
		return v
	}
	return General
}

// ErrCompletionPanic wraps a panic raised inside the completion client.
var ErrCompletionPanic = errors.New("completion client panicked")

// Result is an immutable classification.
type Result struct {
	DataSource   sources.DataSource `json:"data_source"`
	Confidence   int                `json:"confidence"`
	Reasoning    string             `json:"reasoning"`
	KeyTerms     []string           `json:"key_terms"`
	AnalysisType AnalysisType       `json:"analysis_type"`
}

// Explicit returns the pass-through classification for a user-selected source.
func Explicit(source sources.DataSource) Result {
	return Result{
		DataSource:   source,
		Confidence:   ExplicitConfidence,
		Reasoning:    "data source selected explicitly by the user",
		KeyTerms:     []string{},
		AnalysisType: General,
	}
}

type response struct {
	DataSource   string   `json:"data_source"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	KeyTerms     []string `json:"key_terms"`
	AnalysisType string   `json:"analysis_type"`
}

// Classifier classifies questions through the completion capability and
// degrades to keyword heuristics when it is unavailable.
type Classifier struct {
	client  completion.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Classifier. A zero timeout leaves calls bounded only by ctx.
func New(client completion.Client, timeout time.Duration, logger *slog.Logger) *Classifier {
	if client == nil {
		client = completion.Unavailable
	}
	return &Classifier{
		client:  client,
		timeout: timeout,
		logger:  logger.With("system", "classifier"),
	}
}

// Classify never fails: completion errors, timeouts and malformed responses
// degrade to a low-confidence heuristic result.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	req, err := prompts.Compose(prompts.StageClassify, prompts.Section{Title: "Question", Body: text})
	if err != nil {
		return Default(text)
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "classification degraded to heuristics", "error", err)
		return Default(text)
	}

	parsed, err := formatting.ParseValid[response](content, prompts.Schema(prompts.StageClassify))
	if err != nil {
		if source, ok := sniffSource(content); ok {
			c.logger.WarnContext(ctx, "unstructured classification response", "error", err, "source", source)
			return Result{
				DataSource:   source,
				Confidence:   UnstructuredConfidence,
				Reasoning:    "classification recovered from an unstructured response",
				KeyTerms:     matchedTerms(text),
				AnalysisType: inferAnalysisType(text),
			}
		}
		c.logger.WarnContext(ctx, "classification response rejected", "error", err)
		return Default(text)
	}

	return normalize(parsed)
}

// QuickClassify returns only the data source, skipping reasoning and key terms.
func (c *Classifier) QuickClassify(ctx context.Context, text string) sources.DataSource {
	req, err := prompts.Compose(prompts.StageRoute, prompts.Section{Title: "Question", Body: text})
	if err != nil {
		return Heuristic(text)
	}
	req.MaxTokens = 5

	content, err := c.complete(ctx, req)
	if err != nil {
		return Heuristic(text)
	}
	if source, ok := sniffSource(content); ok {
		return source
	}
	return Heuristic(text)
}

// complete converts client panics into errors so both classification paths
// degrade to heuristics.
func (c *Classifier) complete(ctx context.Context, req completion.Request) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCompletionPanic, rec)
		}
	}()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.client.Complete(ctx, req)
}

func normalize(r response) Result {
	source, err := sources.Parse(r.DataSource)
	if err != nil {
		source = sources.Combined
	}

	confidence := r.Confidence
	if confidence > 0 && confidence <= 1 {
		confidence *= 100
	}

	terms := r.KeyTerms
	if terms == nil {
		terms = []string{}
	}

	return Result{
		DataSource:   source,
		Confidence:   clamp(confidence),
		Reasoning:    r.Reasoning,
		KeyTerms:     terms,
		AnalysisType: ParseAnalysisType(r.AnalysisType),
	}
}

func clamp(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

var sourceWord = regexp.MustCompile(`(?i)\b(coupa|baan|combined)\b`)

// sniffSource finds the first data source named in content. A JSON object is
// decoded first so that the data_source field wins over mentions in prose.
func sniffSource(content string) (sources.DataSource, bool) {
	var sniffed struct {
		DataSource string `json:"data_source"`
	}
	if json.Unmarshal([]byte(strings.TrimSpace(content)), &sniffed) == nil {
		if s, err := sources.Parse(sniffed.DataSource); err == nil {
			return s, true
		}
	}
	m := sourceWord.FindString(content)
	if m == "" {
		return "", false
	}
	s, err := sources.Parse(m)
	return s, err == nil
}
