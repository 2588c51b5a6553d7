package labreport

import "strings"

// IsAbnormal reports whether the first number in value falls outside the
// range parsed from reference. Missing reference, an unusable range or a
// value without a number all yield false. Units are not compared.
func IsAbnormal(value, reference string) bool {
	if strings.TrimSpace(reference) == "" {
		return false
	}
	rng, ok := ParseRange(reference)
	if !ok {
		return false
	}
	v, ok := NumericValue(value)
	if !ok {
		return false
	}
	return !rng.Contains(v)
}
