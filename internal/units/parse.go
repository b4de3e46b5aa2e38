package units

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Parse reads a quantity literal of the form "<number> <unit>", where the
// unit may be compound ("kg / unit", "% / year", "tCO2e / mt") or bare
// ("%"). Thousands separators in the number are accepted and remembered:
// the returned quantity retains the original text for round-trip formatting.
func Parse(text string) (Quantity, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Quantity{}, &Error{
			Code:    ErrCodeBadLiteral,
			Message: "empty quantity, expected \"<number> <unit>\"",
			Input:   text,
		}
	}

	numEnd := numberPrefixLen(trimmed)
	if numEnd == 0 {
		return Quantity{}, &Error{
			Code:    ErrCodeBadLiteral,
			Message: "expected a number before the unit",
			Input:   trimmed,
		}
	}

	numText := trimmed[:numEnd]
	rest := trimmed[numEnd:]
	unit := strings.TrimSpace(rest)

	// "%" may hug the number ("85%"); everything else needs a separator.
	if unit != "" && !strings.HasPrefix(rest, " ") && !strings.HasPrefix(unit, "%") {
		return Quantity{}, &Error{
			Code:    ErrCodeBadLiteral,
			Message: "missing space between number and unit",
			Input:   trimmed,
		}
	}
	if unit == "" {
		return Quantity{}, &Error{
			Code:    ErrCodeBadLiteral,
			Message: "missing unit after number, expected \"<number> <unit>\"",
			Input:   trimmed,
		}
	}

	value, _, err := apd.NewFromString(strings.ReplaceAll(numText, ",", ""))
	if err != nil {
		return Quantity{}, &Error{
			Code:    ErrCodeBadLiteral,
			Message: "unparseable numeric literal",
			Input:   numText,
		}
	}

	return NewWithText(value, unit, trimmed), nil
}

// MustParse parses a quantity literal, panicking on malformed input.
// Intended for constants and tests.
func MustParse(text string) Quantity {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

// numberPrefixLen returns the length of the leading numeric portion of s,
// allowing a sign, digits, one decimal point, and comma separators.
func numberPrefixLen(s string) int {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	sawDigit := false
	sawPoint := false
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsDigit(c):
			sawDigit = true
		case c == ',' && sawDigit:
			// thousands separator
		case c == '.' && !sawPoint:
			sawPoint = true
		default:
			if !sawDigit {
				return 0
			}
			return i
		}
		i++
	}
	if !sawDigit {
		return 0
	}
	return i
}

var englishPrinter = message.NewPrinter(language.English)

// Format renders a quantity as "<number> <unit>" with English-locale
// thousands separators. Bare percentages render without a space ("85%").
// Format does not consult the original literal; see Quantity.String.
func Format(q Quantity) string {
	v := q.Value()
	text := v.Text('f')

	formatted := text
	if f, err := v.Float64(); err == nil {
		digits := fractionDigits(text)
		formatted = englishPrinter.Sprint(number.Decimal(f,
			number.MinFractionDigits(digits),
			number.MaxFractionDigits(digits)))
	}

	if q.unit == "%" {
		return formatted + "%"
	}
	return formatted + " " + q.unit
}

func fractionDigits(text string) int {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return len(text) - i - 1
	}
	return 0
}
