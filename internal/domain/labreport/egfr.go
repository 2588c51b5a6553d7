package labreport

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	CreatinineName = "Creatinina"
	EGFRName       = "Estimativa do Ritmo de Filtração Glomerular"

	calculatedEGFRName = EGFRName + " (CKD-EPI)"
	egfrUnit           = "mL/min/1,73m²"
	egfrReference      = "> 90 mL/min/1,73m²"
	egfrNormalFloor    = 90
)

// DefaultAge is used for the filtration-rate estimate when the caller does
// not know the patient's age.
const DefaultAge = 65

var ErrInvalidProfile = errors.New("invalid patient profile")

// Profile holds the demographic inputs of the CKD-EPI equation. None of them
// are read from the document.
type Profile struct {
	Age    int  `json:"age"`
	Female bool `json:"female"`
	Black  bool `json:"black"`
}

// DefaultProfile returns a male, non-black patient of DefaultAge.
func DefaultProfile() Profile {
	return Profile{Age: DefaultAge}
}

// Validate rejects ages the adult equation is not defined for.
func (p Profile) Validate() error {
	if p.Age < 18 || p.Age > 120 {
		return fmt.Errorf("%w: age %d outside 18-120", ErrInvalidProfile, p.Age)
	}
	return nil
}

// CKDEPI computes the 2009 CKD-EPI creatinine estimate in mL/min/1.73m²,
// rounded half to even. ok is false when creatinine is not positive or the
// estimate is not a finite number.
func CKDEPI(creatinine float64, p Profile) (egfr int, ok bool) {
	if !(creatinine > 0) || math.IsInf(creatinine, 0) {
		return 0, false
	}
	k, alpha, c := 0.9, -0.411, 141.0
	if p.Female {
		k, alpha, c = 0.7, -0.329, 144.0
	}
	if creatinine > k {
		alpha = -1.209
	}
	v := c * math.Pow(creatinine/k, alpha) * math.Pow(0.993, float64(p.Age))
	if p.Black {
		v *= 1.159
	}
	v = math.RoundToEven(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// appendEGFR adds a calculated filtration-rate entry to the biochemistry
// bucket when creatinine is present and no rate was reported. A creatinine
// the equation cannot take fails the parse.
func appendEGFR(r *ParseResult, p Profile) error {
	cr, ok := r.Find(CategoryBiochemistry, CreatinineName)
	if !ok {
		return nil
	}
	if _, ok := r.Find(CategoryBiochemistry, EGFRName); ok {
		return nil
	}
	if cr.NumericValue == nil {
		return nil
	}
	n, ok := CKDEPI(*cr.NumericValue, p)
	if !ok {
		return &ParseError{Cause: fmt.Sprintf("creatinine %q cannot feed the filtration-rate estimate", cr.Value)}
	}
	v := float64(n)
	r.Results[CategoryBiochemistry] = append(r.Results[CategoryBiochemistry], Measurement{
		Name:         calculatedEGFRName,
		Value:        strconv.Itoa(n) + " " + egfrUnit,
		NumericValue: &v,
		Unit:         egfrUnit,
		Reference:    egfrReference,
		IsAbnormal:   n < egfrNormalFloor,
		IsCalculated: true,
	})
	return nil
}
