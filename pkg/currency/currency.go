// Package currency parses monetary values rendered as text into float64 amounts.
// It understands currency symbols and ISO codes, thousands separators,
// parenthesized negatives and leading or trailing minus signs.
package currency

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidAmount is returned when text cannot be interpreted as an amount.
var ErrInvalidAmount = errors.New("invalid currency amount")

var symbols = []string{"$", "€", "£", "¥", "₹", "₩"}

var codes = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "INR", "CNY", "MXN", "CHF"}

// codeRegex matches an ISO code standing alone, not inside a longer word.
var codeRegex = regexp.MustCompile(`(?i)(?:^|[^\pL])(?:` + strings.Join(codes, "|") + `)(?:$|[^\pL])`)

// HasSymbol reports whether raw contains a currency symbol or ISO currency code.
// Codes only count as whole words, so "CADENCE" does not match.
func HasSymbol(raw string) bool {
	for _, s := range symbols {
		if strings.Contains(raw, s) {
			return true
		}
	}
	return codeRegex.MatchString(raw)
}

// Parse converts raw into an amount using US conventions: "," separates thousands
// and "." is the decimal point. "($500.00)" parses to -500.
func Parse(raw string) (float64, error) {
	s, negative, err := normalize(raw)
	if err != nil {
		return 0, err
	}
	s = strings.ReplaceAll(s, ",", "")
	return finish(raw, s, negative)
}

// ParseLenient behaves like Parse but additionally accepts European formatting
// ("1.234,56") and stray spaces between digit groups.
func ParseLenient(raw string) (float64, error) {
	s, negative, err := normalize(raw)
	if err != nil {
		return 0, err
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma > lastDot && len(s)-lastComma-1 != 3:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma > lastDot && lastDot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	return finish(raw, s, negative)
}

// Normalize converts any supported raw value (string or numeric) into a float64.
// The second return reports whether the value was changed by normalization,
// which is always true for strings and false for float64.
func Normalize(raw any) (float64, bool, error) {
	switch v := raw.(type) {
	case float64:
		return v, false, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case string:
		f, err := Parse(v)
		return f, true, err
	case []byte:
		f, err := Parse(string(v))
		return f, true, err
	case nil:
		return 0, false, fmt.Errorf("%w: nil", ErrInvalidAmount)
	default:
		return 0, false, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, raw)
	}
}

// Format renders amount with the given symbol and thousands separators, two decimals.
func Format(amount float64, symbol string) string {
	negative := amount < 0
	amount = math.Abs(amount)

	whole := int64(amount)
	cents := int64(math.Round((amount - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := fmt.Sprintf("%s%s.%02d", symbol, b.String(), cents)
	if negative {
		return "-" + out
	}
	return out
}

func normalize(raw string) (string, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range symbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	upper := strings.ToUpper(s)
	for _, c := range codes {
		if idx := strings.Index(upper, c); idx >= 0 {
			s = s[:idx] + s[idx+len(c):]
			upper = strings.ToUpper(s)
		}
	}
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[:len(s)-1])
	}
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return s, negative, nil
}

func finish(raw, s string, negative bool) (float64, error) {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		f = -f
	}
	return f, nil
}
