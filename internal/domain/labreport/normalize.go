package labreport

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericToken matches a run of digits and decimal separators holding at
// least one digit. Both '.' and ',' are accepted; ',' is the decimal mark.
var numericToken = regexp.MustCompile(`[\d.,]*\d[\d.,]*`)

// unitStrip removes every run of digits, separators and whitespace.
var unitStrip = regexp.MustCompile(`[\d.,\s]+`)

// Range is a parsed reference interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// parseToken converts a numeric token using the comma-as-decimal convention.
// Tokens that are not a single decimal number (e.g. "1.2.3") yield ok=false.
func parseToken(tok string) (float64, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(tok, ",", "."))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// NumericValue returns the first numeric token of s.
func NumericValue(s string) (float64, bool) {
	tok := numericToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	return parseToken(tok)
}

// Unit returns s with all numeric and whitespace runs removed.
func Unit(s string) string {
	return strings.TrimSpace(unitStrip.ReplaceAllString(s, ""))
}

// ParseRange reads the first two numeric tokens of a reference text as
// [min, max]. Fewer than two tokens means no usable range.
func ParseRange(reference string) (Range, bool) {
	toks := numericToken.FindAllString(reference, 2)
	if len(toks) < 2 {
		return Range{}, false
	}
	lo, ok := parseToken(toks[0])
	if !ok {
		return Range{}, false
	}
	hi, ok := parseToken(toks[1])
	if !ok {
		return Range{}, false
	}
	return Range{Min: lo, Max: hi}, true
}

// newMeasurement fills in the derived fields of a referenced result.
func newMeasurement(name, value, reference string) Measurement {
	m := Measurement{
		Name:       name,
		Value:      value,
		Reference:  reference,
		IsAbnormal: IsAbnormal(value, reference),
	}
	if value != "" {
		if v, ok := NumericValue(value); ok {
			m.NumericValue = &v
		}
		m.Unit = Unit(value)
	}
	return m
}
