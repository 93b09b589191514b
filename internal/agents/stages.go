package agents

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JaimeStill/insight/internal/executor"
	"github.com/JaimeStill/insight/internal/pipeline"
	"github.com/JaimeStill/insight/internal/prompts"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/internal/validation"
	"github.com/JaimeStill/insight/pkg/formatting"
)

const (
	minInsights   = 4
	maxInsights   = 6
	insightSample = 25
	maxTitle      = 80
)

// stages holds the stage implementations shared by every agent.
type stages struct {
	Deps
}

func (st *stages) reasoning() pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageReasoning, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		schema, err := lookup(s.Source)
		if err != nil {
			return pipeline.Patch{}, err
		}

		req, err := prompts.Compose(prompts.StageReasoning,
			prompts.Section{Title: "Question", Body: s.Query},
			prompts.Section{Title: "Data source", Body: schema.Describe(st.Now())},
			prompts.Section{Title: "Classification", Body: s.Classification},
		)
		if err != nil {
			return pipeline.Patch{}, err
		}

		content, err := st.Client.Complete(ctx, req)
		if err == nil {
			var r pipeline.Reasoning
			if r, err = formatting.ParseValid[pipeline.Reasoning](content, prompts.Schema(prompts.StageReasoning)); err == nil {
				return pipeline.Patch{Reasoning: &r}, nil
			}
		}

		st.Logger.WarnContext(ctx, "reasoning fell back to template", "source", s.Source, "error", err)
		return pipeline.Patch{
			Reasoning:         templateReasoning(s.Query, schema, s.Classification.AnalysisType),
			ReasoningTemplate: true,
		}, nil
	}}
}

func (st *stages) business() pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageBusiness, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		schema, err := lookup(s.Source)
		if err != nil {
			return pipeline.Patch{}, err
		}

		sections := []prompts.Section{
			{Title: "Question", Body: s.Query},
			{Title: "Data source", Body: fmt.Sprintf("%s (%s)", schema.Source, schema.EntityLabel)},
		}
		if s.Reasoning != nil {
			sections = append(sections, prompts.Section{Title: "Analysis plan", Body: s.Reasoning})
		}

		req, err := prompts.Compose(prompts.StageBusiness, sections...)
		if err != nil {
			return pipeline.Patch{}, err
		}

		content, err := st.Client.Complete(ctx, req)
		if err == nil {
			if text := sources.StripSQL(content); text != "" {
				return pipeline.Patch{Business: text}, nil
			}
		}

		st.Logger.WarnContext(ctx, "business narrative fell back to template", "source", s.Source, "error", err)
		return pipeline.Patch{Business: templateBusiness(s.Query, schema, s.Reasoning)}, nil
	}}
}

func (st *stages) synthesis() pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageSynthesis, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		sql, err := st.synthesize(ctx, s)
		if err != nil {
			return pipeline.Patch{}, err
		}
		return pipeline.Patch{SQL: sql}, nil
	}}
}

func (st *stages) synthesize(ctx context.Context, s *pipeline.State) (string, error) {
	schema, err := lookup(s.Source)
	if err != nil {
		return "", err
	}

	req, err := prompts.Compose(prompts.StageSynthesis,
		prompts.Section{Title: "Question", Body: s.Query},
		prompts.Section{Title: "Analysis type", Body: string(s.Classification.AnalysisType)},
		prompts.Section{Title: "Schema", Body: schema.Describe(st.Now())},
	)
	if err != nil {
		return "", err
	}

	content, err := st.Client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	sql := sources.ExtractSQL(content)
	if _, _, err := schema.Route(sql); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	return sql, nil
}

func (st *stages) execution() pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageExecution, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		patch, err := st.execute(ctx, s.Source, s.SQL, s.Query)
		if err != nil {
			return pipeline.Patch{}, err
		}

		review := st.Validation.Review(patch.Rows, validation.Context{
			Operation: "agent." + string(s.Source),
			Source:    s.Source,
		})
		patch.Rows = review.Rows
		patch.Review = &review
		if review.Flagged {
			st.Logger.WarnContext(ctx, "returning flagged results",
				"source", s.Source,
				"confidence", review.Result.Confidence,
				"warnings", len(review.Result.Warnings),
			)
		}
		return patch, nil
	}}
}

// execute routes sql to the source's table and runs it, recovering through
// the fallback service on failure. The returned patch carries the executed
// statement, redirects, rows and any fallback result; it has not been validated.
func (st *stages) execute(ctx context.Context, source sources.DataSource, sql, question string) (pipeline.Patch, error) {
	schema, err := lookup(source)
	if err != nil {
		return pipeline.Patch{}, err
	}

	routed, redirects, err := schema.Route(sql)
	if err != nil {
		return pipeline.Patch{}, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if len(redirects) > 0 {
		st.Logger.InfoContext(ctx, "redirected table references", "source", source, "redirects", redirects)
	}

	rows, err := st.Executor.Execute(ctx, source, routed)
	if err == nil {
		return pipeline.Patch{
			ExecutedSQL: routed,
			Redirects:   redirects,
			Sources:     []sources.DataSource{source},
			Rows:        rows,
		}, nil
	}

	st.Logger.WarnContext(ctx, "execution failed, starting fallback", "source", source, "error", err)
	fb := st.Fallback.Recover(ctx, source, routed, question, err.Error())
	if !fb.Success {
		return pipeline.Patch{}, fmt.Errorf("%w: %s", ErrExecutionFailed, fb.Error)
	}

	return pipeline.Patch{
		ExecutedSQL: fb.SQL,
		Redirects:   append(redirects, fb.Redirects...),
		Sources:     []sources.DataSource{source},
		Rows:        fb.Results,
		Fallback:    &fb,
	}, nil
}

type insightsResponse struct {
	Insights []pipeline.Insight `json:"insights"`
}

func (st *stages) insights(currency string) pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageInsights, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		if len(s.Rows) == 0 {
			return pipeline.Patch{
				Insights:         []pipeline.Insight{placeholderInsight("The query returned no records for this question.")},
				InsightsDegraded: true,
			}, nil
		}

		summary := Summarize(s.Rows, amountColumns(s.Source), entityColumn(s.Source))
		req, err := prompts.Compose(prompts.StageInsights,
			prompts.Section{Title: "Question", Body: s.Query},
			prompts.Section{Title: "Summary", Body: summary.Describe(currency)},
			prompts.Section{Title: "Results", Body: sample(s.Rows, insightSample)},
		)
		if err != nil {
			return pipeline.Patch{}, err
		}

		content, err := st.Client.Complete(ctx, req)
		if err != nil {
			st.Logger.WarnContext(ctx, "insight synthesis unavailable", "source", s.Source, "error", err)
			return pipeline.Patch{
				Insights:         []pipeline.Insight{placeholderInsight(summary.Headline(currency))},
				InsightsDegraded: true,
			}, nil
		}

		var patch pipeline.Patch
		parsed, err := formatting.ParseValid[insightsResponse](content, prompts.Schema(prompts.StageInsights))
		if err == nil {
			patch.Insights = normalizeInsights(parsed.Insights)
		} else {
			st.Logger.WarnContext(ctx, "insights parsed from unstructured text", "source", s.Source, "error", err)
			patch = pipeline.Patch{Insights: ParseInsightLines(content), InsightsDegraded: true}
		}

		switch n := len(patch.Insights); {
		case n == 0:
			st.Logger.WarnContext(ctx, "insight reply was empty", "source", s.Source)
			return pipeline.Patch{
				Insights:         []pipeline.Insight{placeholderInsight(summary.Headline(currency))},
				InsightsDegraded: true,
			}, nil
		case n < minInsights:
			st.Logger.WarnContext(ctx, "fewer insights than requested", "count", n)
		}
		return patch, nil
	}}
}

func (st *stages) report(title, currency, entityLabel string) pipeline.Step {
	return pipeline.Step{Stage: pipeline.StageReport, Run: func(ctx context.Context, s *pipeline.State) (pipeline.Patch, error) {
		summary := Summarize(s.Rows, amountColumns(s.Source), entityColumn(s.Source))
		flagged := s.Review != nil && s.Review.Flagged
		return pipeline.Patch{
			Report: BuildReport(title, summary, s.Insights, currency, entityLabel, flagged),
		}, nil
	}}
}

func sample(rows []executor.Row, n int) []executor.Row {
	return rows[:min(len(rows), n)]
}

func amountColumns(source sources.DataSource) []string {
	cols := []string{"total_amount", "total_spend", "total"}
	if schema, err := sources.Lookup(source); err == nil {
		return append(cols, schema.AmountColumn)
	}
	for _, c := range sources.Concrete() {
		if schema, err := sources.Lookup(c); err == nil {
			cols = append(cols, schema.AmountColumn)
		}
	}
	return cols
}

func entityColumn(source sources.DataSource) string {
	if schema, err := sources.Lookup(source); err == nil {
		return schema.EntityColumn
	}
	return "supplier_name"
}

func titleFor(query string) string {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) <= maxTitle {
		return q
	}
	r := []rune(q)
	return string(r[:maxTitle-3]) + "..."
}
