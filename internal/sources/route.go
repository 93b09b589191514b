package sources

import (
	"regexp"
	"strings"
)

// Redirect records a table reference that was rewritten to the source's primary table.
type Redirect struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var (
	tableRefRegex  = regexp.MustCompile(`(?i)\b(from|join)\s+((?:"?[a-z_][a-z0-9_]*"?\.)?"?[a-z_][a-z0-9_]*"?)`)
	cteRegex       = regexp.MustCompile(`(?i)(?:\bwith\s+(?:recursive\s+)?|,\s*)([a-z_][a-z0-9_]*)\s+as\s*\(`)
	fromFuncRegex  = regexp.MustCompile(`(?i)\b(extract|substring|trim|overlay|position)\s*\([^()]*\)`)
	writeRegex     = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create|grant|revoke|merge|copy)\b`)
	leadRegex      = regexp.MustCompile(`(?is)^\s*(select|with)\b`)
	commentRegex   = regexp.MustCompile(`(?s)/\*.*?\*/|--[^\n]*`)
	literalRegex   = regexp.MustCompile(`'(?:[^']|'')*'`)
	fencedSQLRegex = regexp.MustCompile("(?s)```(?:sql|SQL|postgresql)?\\s*\\n?(.*?)\\n?```")
	statementRegex = regexp.MustCompile(`(?is)\b(select\b|with\s+(?:recursive\s+)?[a-z_][a-z0-9_]*\s+as\s*\()[^;]*`)
)

// Route enforces the source's table ownership on sql. Every FROM/JOIN reference to a
// table outside the allowlist is rewritten to the primary table; CTE names and
// function-call FROM clauses (EXTRACT(... FROM col)) are left untouched.
// Statements that are not reads are rejected with ErrNotReadOnly.
func (s *Schema) Route(sql string) (string, []Redirect, error) {
	sql = strings.TrimRight(strings.TrimSpace(sql), "; \n\t")
	if sql == "" {
		return "", nil, ErrEmptyQuery
	}

	blank := func(m string) string { return strings.Repeat(" ", len(m)) }
	inspect := literalRegex.ReplaceAllStringFunc(commentRegex.ReplaceAllStringFunc(sql, blank), blank)
	if !leadRegex.MatchString(inspect) || writeRegex.MatchString(inspect) || strings.Contains(inspect, ";") {
		return "", nil, ErrNotReadOnly
	}

	ctes := make(map[string]bool)
	for _, m := range cteRegex.FindAllStringSubmatch(inspect, -1) {
		ctes[strings.ToLower(m[1])] = true
	}

	skip := fromFuncRegex.FindAllStringIndex(inspect, -1)
	inSkip := func(pos int) bool {
		for _, span := range skip {
			if pos >= span[0] && pos < span[1] {
				return true
			}
		}
		return false
	}

	var (
		b         strings.Builder
		redirects []Redirect
		last      int
	)

	for _, m := range tableRefRegex.FindAllStringSubmatchIndex(inspect, -1) {
		start, end := m[4], m[5]
		ref := sql[start:end]

		if inSkip(m[0]) || ctes[strings.ToLower(strings.Trim(ref, `"`))] || s.Allowed(ref) {
			continue
		}
		if next := strings.TrimSpace(sql[end:]); strings.HasPrefix(next, "(") {
			continue
		}

		b.WriteString(sql[last:start])
		b.WriteString(s.QualifiedTable())
		last = end
		redirects = append(redirects, Redirect{From: ref, To: s.QualifiedTable()})
	}
	b.WriteString(sql[last:])

	return b.String(), redirects, nil
}

// ExtractSQL pulls an executable statement out of completion text: the body of the
// first fenced code block, else the first statement beginning with SELECT or WITH,
// else the trimmed raw text.
func ExtractSQL(text string) string {
	text = strings.TrimSpace(text)

	if m := fencedSQLRegex.FindStringSubmatch(text); len(m) >= 2 {
		if body := strings.TrimSpace(m[1]); body != "" {
			return strings.TrimRight(body, "; \n\t")
		}
	}

	if loc := statementRegex.FindStringIndex(text); loc != nil {
		return strings.TrimRight(strings.TrimSpace(text[loc[0]:loc[1]]), "; \n\t")
	}

	return strings.TrimRight(text, "; \n\t")
}

// StripSQL removes query fragments from narrative text: fenced code blocks,
// lines that read like SQL statements or clauses, and SELECT statements
// written inline within a sentence.
func StripSQL(text string) string {
	text = fencedBlockRegex.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if sqlLineRegex.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	out = inlineSQLRegex.ReplaceAllString(out, "")
	out = bareStatementRegex.ReplaceAllString(out, "")
	out = blankLinesRegex.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```.*?```")
	sqlLineRegex     = regexp.MustCompile(`(?i)^\s*(select\b.+\bfrom\b|with\s+\w+\s+as\s*\(|from\s+\w+|where\s+\w+\s*(=|<|>|in\b|like\b)|group\s+by\b|order\s+by\b|limit\s+\d+|having\b|(inner|left|right|full)?\s*join\s+\w+\s+on\b)`)
	inlineSQLRegex   = regexp.MustCompile("(?i)`[^`]*\\b(select|from|where|group by)\\b[^`]*`")
	blankLinesRegex  = regexp.MustCompile(`\n{3,}`)

	// A select list must open with *, a call, a snake_case column or a
	// comma-separated item, so prose like "select suppliers from" survives.
	bareStatementRegex = regexp.MustCompile(`(?im)\bselect\s+(?:\*|[\w.]+\s*\(|[\w.]*_[\w.]*|[\w.]+\s*,)[^;\n]*?\bfrom\s+[\w"]+(?:\.[\w"]+)*[^;\n]*?(?:;|$|\.\s)`)
)
