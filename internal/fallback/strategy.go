package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/JaimeStill/insight/internal/prompts"
	"github.com/JaimeStill/insight/internal/sources"
)

// Strategy is a query rewrite approach.
type Strategy string

const (
	SyntaxRepair       Strategy = "syntax_repair"
	SchemaRegeneration Strategy = "schema_regeneration"
	SimplifiedQuery    Strategy = "simplified_query"
	RowLimited         Strategy = "row_limited"
	SafeAggregate      Strategy = "safe_aggregate"
)

var strategies = []Strategy{
	SyntaxRepair, SchemaRegeneration, SimplifiedQuery, RowLimited, SafeAggregate,
}

// Strategies returns every known strategy in escalation order.
func Strategies() []Strategy {
	return strategies
}

var plans = map[Category][]Strategy{
	CategorySyntax:        {SyntaxRepair, SchemaRegeneration, SafeAggregate},
	CategoryMissingColumn: {SchemaRegeneration, SimplifiedQuery, SafeAggregate},
	CategoryPermission:    {SafeAggregate, SchemaRegeneration, SimplifiedQuery},
	CategoryTimeout:       {RowLimited, SafeAggregate, SimplifiedQuery},
	CategoryUnknown:       {SimplifiedQuery, SchemaRegeneration, SafeAggregate},
}

// Plan returns the preferred strategy order for a category.
func Plan(c Category) []Strategy {
	if p, ok := plans[c]; ok {
		return p
	}
	return plans[CategoryUnknown]
}

var directives = map[Strategy]string{
	SyntaxRepair: "Strategy: syntax repair. Keep the intent, tables and columns of the failing " +
		"statement and fix only what the database rejected.",
	SchemaRegeneration: "Strategy: schema-constrained regeneration. Discard the failing statement " +
		"and write a new one from the business question using only the listed columns.",
	SimplifiedQuery: "Strategy: simplification. Write the simplest statement that still answers the " +
		"question: one table, at most one GROUP BY, no joins, subqueries or CTEs.",
}

// rewrite produces the statement for one strategy. Deterministic strategies are
// built locally; the others ask the completion capability.
func (s *Session) rewrite(ctx context.Context, strategy Strategy, errMsg string) (string, error) {
	switch strategy {
	case RowLimited:
		return sources.RowLimited(s.original, s.svc.rowLimit), nil
	case SafeAggregate:
		return s.schema.SafeAggregate(s.svc.now(), s.svc.rowLimit), nil
	}

	directive, ok := directives[strategy]
	if !ok {
		return "", fmt.Errorf("unsupported strategy %s", strategy)
	}

	req, err := prompts.Compose(prompts.StageRepair,
		prompts.Section{Title: "Business question", Body: s.question},
		prompts.Section{Title: "Failing statement", Body: s.original},
		prompts.Section{Title: "Database error", Body: errMsg},
		prompts.Section{Title: "Schema", Body: s.schema.Describe(s.svc.now())},
		prompts.Section{Body: directive},
	)
	if err != nil {
		return "", err
	}

	content, err := s.svc.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("rewrite %s: %w", strategy, err)
	}

	sql := sources.ExtractSQL(content)
	if sql == "" {
		return "", ErrEmptyRewrite
	}
	return sql, nil
}

func defaultNow() time.Time {
	return time.Now()
}
