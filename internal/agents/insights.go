package agents

import (
	"regexp"
	"slices"
	"strings"

	"github.com/JaimeStill/insight/internal/pipeline"
)

var categories = []string{"financial", "procurement", "risk", "performance", "strategic"}

var categoryCues = []struct {
	category string
	cues     []string
}{
	{"risk", []string{"risk", "concentration", "dependency", "exposure", "single source"}},
	{"performance", []string{"performance", "delivery", "lead time", "on-time", "quality"}},
	{"strategic", []string{"strategic", "long-term", "consolidat", "negotiat", "partnership"}},
	{"procurement", []string{"supplier", "vendor", "purchase", "order", "contract", "sourcing"}},
}

var (
	bulletRegex = regexp.MustCompile(`^\s*(?:[•\-*]|\d+[.)])\s+(.+)$`)
	metricRegex = regexp.MustCompile(`[$€£]\s?[\d,]+(?:\.\d+)?[kKmMbB]?|\d+(?:\.\d+)?\s?%|\d[\d,]*(?:\.\d+)?\s(?:records|suppliers|orders|invoices)`)
)

// ParseInsightLines extracts insights from free text by line prefix: bullets
// (•, -, *) and numbered items ("1." or "1)"). Other lines are discarded.
// When nothing matches, the trimmed text becomes a single insight.
func ParseInsightLines(text string) []pipeline.Insight {
	insights := make([]pipeline.Insight, 0, maxInsights)
	for _, line := range strings.Split(text, "\n") {
		m := bulletRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		body := strings.TrimSpace(strings.Trim(m[1], "*_ "))
		if body == "" {
			continue
		}
		insights = append(insights, newInsight(body, ""))
		if len(insights) == maxInsights {
			break
		}
	}

	if len(insights) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			insights = append(insights, newInsight(t, ""))
		}
	}
	return insights
}

func normalizeInsights(in []pipeline.Insight) []pipeline.Insight {
	out := make([]pipeline.Insight, 0, min(len(in), maxInsights))
	for _, i := range in {
		text := strings.TrimSpace(i.Text)
		if text == "" {
			continue
		}
		insight := newInsight(text, i.Category)
		if m := strings.TrimSpace(i.Metric); m != "" {
			insight.Metric = m
		}
		out = append(out, insight)
		if len(out) == maxInsights {
			break
		}
	}
	return out
}

func newInsight(text, category string) pipeline.Insight {
	category = strings.ToLower(strings.TrimSpace(category))
	if !slices.Contains(categories, category) {
		category = inferCategory(text)
	}
	return pipeline.Insight{
		Text:     text,
		Category: category,
		Metric:   metricRegex.FindString(text),
	}
}

func inferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryCues {
		for _, cue := range c.cues {
			if strings.Contains(lower, cue) {
				return c.category
			}
		}
	}
	return "financial"
}
