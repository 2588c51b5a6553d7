package examhistory

import (
	"errors"
	"testing"
	"time"

	"github.com/labreport/labreport/internal/domain/labreport"
)

func TestParseCollectionDate(t *testing.T) {
	on, err := ParseCollectionDate(" 17/02/2025 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC); !on.Equal(want) {
		t.Errorf("expected %v, got %v", want, on)
	}

	for _, bad := range []string{"", "2025-02-17", "31/02/2025", "17/2/25x"} {
		if _, err := ParseCollectionDate(bad); !errors.Is(err, ErrInvalidCollectionDate) {
			t.Errorf("ParseCollectionDate(%q): expected ErrInvalidCollectionDate, got %v", bad, err)
		}
	}
}

func TestNewExam(t *testing.T) {
	r := result("Maria Souza", "03/01/2025")
	e, err := NewExam("exame.pdf", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.PatientName != "Maria Souza" || e.CollectionDate != "03/01/2025" {
		t.Errorf("unexpected identity: %+v", e)
	}
	if e.CollectedOn.Day() != 3 || e.CollectedOn.Month() != time.January {
		t.Errorf("expected collected_on 2025-01-03, got %v", e.CollectedOn)
	}
	if e.SourceName != "exame.pdf" || e.Result != r {
		t.Error("source or result not carried over")
	}
}

func TestNewExam_Incomplete(t *testing.T) {
	tests := map[string]*labreport.ParseResult{
		"nil":     nil,
		"no name": result("", "03/01/2025"),
		"no date": result("Maria Souza", ""),
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewExam("", r); !errors.Is(err, ErrIncompleteReport) {
				t.Errorf("expected ErrIncompleteReport, got %v", err)
			}
		})
	}

	if _, err := NewExam("", result("Maria Souza", "3 de janeiro")); !errors.Is(err, ErrInvalidCollectionDate) {
		t.Errorf("expected ErrInvalidCollectionDate, got %v", err)
	}
}

// result builds a ParseResult carrying only identity fields; callers append
// measurements with withValue.
func result(name, date string) *labreport.ParseResult {
	r := &labreport.ParseResult{
		Meta:    labreport.ReportMeta{SubjectName: name, CollectionDate: date},
		Results: map[labreport.Category][]labreport.Measurement{},
		Imaging: []labreport.ImagingFinding{},
	}
	for _, c := range labreport.MeasurementCategories {
		r.Results[c] = []labreport.Measurement{}
	}
	return r
}

func withValue(r *labreport.ParseResult, c labreport.Category, name string, v float64, unit, ref string) *labreport.ParseResult {
	r.Results[c] = append(r.Results[c], labreport.Measurement{
		Name:         name,
		Value:        "x",
		NumericValue: &v,
		Unit:         unit,
		Reference:    ref,
	})
	return r
}

func examOn(date string, r *labreport.ParseResult) *Exam {
	on, _ := ParseCollectionDate(date)
	r.Meta.CollectionDate = date
	return &Exam{PatientName: r.Meta.SubjectName, CollectionDate: date, CollectedOn: on, Result: r}
}
