package fallback

import (
	"strings"
)

// Category classifies an execution error message.
type Category string

const (
	CategorySyntax        Category = "syntax"
	CategoryMissingColumn Category = "missing_column"
	CategoryPermission    Category = "permission"
	CategoryTimeout       Category = "timeout"
	CategoryUnknown       Category = "unknown"
)

var categoryPatterns = []struct {
	category Category
	patterns []string
}{
	{CategoryTimeout, []string{
		"timeout", "timed out", "deadline exceeded", "statement timeout", "57014",
	}},
	{CategoryPermission, []string{
		"permission denied", "insufficient privilege", "not authorized", "access denied", "42501",
	}},
	{CategoryMissingColumn, []string{
		"undefined column", "no such column", "unknown column", "42703", "42p01", "undefined table",
	}},
	{CategorySyntax, []string{
		"syntax error", "42601", "unterminated", "at or near", "invalid input syntax", "mismatched",
	}},
}

// Categorize maps an error message onto a Category. Messages naming a column
// or relation that "does not exist" are treated as missing columns.
func Categorize(message string) Category {
	msg := strings.ToLower(message)

	for _, c := range categoryPatterns {
		for _, p := range c.patterns {
			if strings.Contains(msg, p) {
				return c.category
			}
		}
	}

	if strings.Contains(msg, "does not exist") &&
		(strings.Contains(msg, "column") || strings.Contains(msg, "relation")) {
		return CategoryMissingColumn
	}

	return CategoryUnknown
}
