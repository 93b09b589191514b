package sources

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JaimeStill/insight/pkg/query"
)

// Column describes one column of a source table.
type Column struct {
	Name        string
	Type        string
	Unit        string
	Description string
}

// Schema is the fixed relational surface a data source exposes to generated queries.
type Schema struct {
	Source       DataSource
	Name         string
	Table        string
	Tables       []string
	Columns      []Column
	AmountColumn string
	EntityColumn string
	EntityLabel  string
	Currency     string
	Symbol       string

	period     func(now time.Time) string
	projection *query.ProjectionMap
}

// QualifiedTable returns schema.table for the primary table.
func (s *Schema) QualifiedTable() string {
	return s.Name + "." + s.Table
}

// CurrentPeriod returns the mandatory predicate bounding "current" queries
// to the year of now, up to and including its month.
func (s *Schema) CurrentPeriod(now time.Time) string {
	return s.period(now)
}

// Allowed reports whether table (optionally schema-qualified or quoted) belongs to this source.
func (s *Schema) Allowed(table string) bool {
	name := strings.ToLower(strings.Trim(table, `"`))
	if i := strings.LastIndex(name, "."); i >= 0 {
		prefix := strings.Trim(name[:i], `"`)
		if prefix != s.Name {
			return false
		}
		name = strings.Trim(name[i+1:], `"`)
	}
	return slices.Contains(s.Tables, name)
}

// HasColumn reports whether name is a declared column.
func (s *Schema) HasColumn(name string) bool {
	return slices.ContainsFunc(s.Columns, func(c Column) bool {
		return strings.EqualFold(c.Name, name)
	})
}

// Describe renders the schema for inclusion in synthesis prompts.
func (s *Schema) Describe(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s (%s data)\n", s.QualifiedTable(), s.Source)
	b.WriteString("Columns:\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "- %s %s", c.Name, c.Type)
		if c.Unit != "" {
			fmt.Fprintf(&b, " [%s]", c.Unit)
		}
		if c.Description != "" {
			fmt.Fprintf(&b, ": %s", c.Description)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Amounts are in %s.\n", s.Currency)
	fmt.Fprintf(&b, "Queries about the current period MUST include: %s\n", s.CurrentPeriod(now))
	fmt.Fprintf(&b, "Only the table %s may be referenced.", s.QualifiedTable())
	return b.String()
}

// SafeAggregate builds a deterministic aggregate over the primary table for the
// current period: per-entity total, record count and average, largest first.
func (s *Schema) SafeAggregate(now time.Time, limit int) string {
	if limit <= 0 {
		limit = 20
	}
	entity := s.projection.Column("Entity")
	amount := s.projection.Column("Amount")

	return fmt.Sprintf(
		"SELECT %s AS %s, SUM(%s) AS total_amount, COUNT(*) AS record_count, AVG(%s) AS avg_amount "+
			"FROM %s WHERE %s GROUP BY %s ORDER BY total_amount DESC LIMIT %d",
		entity, s.EntityColumn,
		amount,
		amount,
		s.projection.Table(),
		s.CurrentPeriod(now),
		entity,
		limit,
	)
}

// RowLimited wraps sql so that at most limit rows are produced.
func RowLimited(sql string, limit int) string {
	if limit <= 0 {
		limit = 100
	}
	sql = strings.TrimRight(strings.TrimSpace(sql), ";")
	return fmt.Sprintf("SELECT * FROM (%s) AS limited LIMIT %d", sql, limit)
}

func newSchema(s Schema, period func(now time.Time) string) *Schema {
	s.period = period
	s.projection = query.
		NewProjectionMap(s.Name, s.Table, "t").
		Project(s.EntityColumn, "Entity").
		Project(s.AmountColumn, "Amount")
	return &s
}
