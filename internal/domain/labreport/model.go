package labreport

import "encoding/json"

// Category is one of the fixed clinical groupings a result is filed under.
type Category string

const (
	CategoryHematology   Category = "hematology"
	CategoryBiochemistry Category = "biochemistry"
	CategoryHormonal     Category = "hormonal"
	CategoryOther        Category = "other"
	CategoryImaging      Category = "imaging"
)

// MeasurementCategories lists the categories that hold Measurements, in
// report order. Imaging is kept apart because it holds ImagingFindings.
var MeasurementCategories = []Category{
	CategoryHematology,
	CategoryBiochemistry,
	CategoryHormonal,
	CategoryOther,
}

var categoryTitles = map[Category]string{
	CategoryHematology:   "Hemograma",
	CategoryBiochemistry: "Bioquímica",
	CategoryHormonal:     "Hormonais",
	CategoryOther:        "Outros Exames",
	CategoryImaging:      "Exames de Imagem",
}

// Title returns the section heading used when the category is rendered.
func (c Category) Title() string {
	if t, ok := categoryTitles[c]; ok {
		return t
	}
	return string(c)
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	_, ok := categoryTitles[c]
	return ok
}

// ReportMeta carries the patient identity fields found in the document.
// Empty strings mean the field was not found.
type ReportMeta struct {
	SubjectName    string `json:"subject_name"`
	CollectionDate string `json:"collection_date"`
}

// Measurement is a measured clinical value with an optional reference range.
type Measurement struct {
	Name         string   `json:"name"`
	Value        string   `json:"value"`
	NumericValue *float64 `json:"numeric_value,omitempty"`
	Unit         string   `json:"unit"`
	Reference    string   `json:"reference,omitempty"`
	IsAbnormal   bool     `json:"is_abnormal"`
	IsCalculated bool     `json:"is_calculated,omitempty"`
}

// HasNumericValue reports whether a number could be read from Value.
func (m Measurement) HasNumericValue() bool { return m.NumericValue != nil }

// ImagingFinding is a narrative line from the imaging section. Every finding
// is surfaced as clinically notable.
type ImagingFinding struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsAbnormal is always true for imaging findings.
func (ImagingFinding) IsAbnormal() bool { return true }

// MarshalJSON writes the fixed abnormal flag alongside the fields so both
// variants share the same wire shape.
func (f ImagingFinding) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string `json:"name"`
		Value      string `json:"value"`
		IsAbnormal bool   `json:"is_abnormal"`
	}{f.Name, f.Value, true})
}

// ParseResult is the structured outcome of parsing one document.
type ParseResult struct {
	Meta    ReportMeta                 `json:"meta"`
	Results map[Category][]Measurement `json:"results"`
	Imaging []ImagingFinding           `json:"imaging"`
}

func newParseResult() *ParseResult {
	r := &ParseResult{
		Results: make(map[Category][]Measurement, len(MeasurementCategories)),
		Imaging: []ImagingFinding{},
	}
	for _, c := range MeasurementCategories {
		r.Results[c] = []Measurement{}
	}
	return r
}

// Measurements returns the ordered measurements filed under c.
func (r *ParseResult) Measurements(c Category) []Measurement {
	if r == nil {
		return nil
	}
	return r.Results[c]
}

// Find returns the first measurement in c whose name matches exactly.
func (r *ParseResult) Find(c Category, name string) (Measurement, bool) {
	for _, m := range r.Measurements(c) {
		if m.Name == name {
			return m, true
		}
	}
	return Measurement{}, false
}

// Count returns the number of entries across every category.
func (r *ParseResult) Count() int {
	if r == nil {
		return 0
	}
	n := len(r.Imaging)
	for _, ms := range r.Results {
		n += len(ms)
	}
	return n
}

// Empty reports whether nothing at all was extracted: no entries and no
// identity fields.
func (r *ParseResult) Empty() bool {
	return r.Count() == 0 && r.Meta.SubjectName == "" && r.Meta.CollectionDate == ""
}
