package examhistory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labreport/labreport/internal/domain/labreport"
)

// CollectionDateLayout is the dd/mm/yyyy form printed on the reports.
const CollectionDateLayout = "02/01/2006"

var (
	ErrExamNotFound          = errors.New("exam not found")
	ErrDuplicateExam         = errors.New("exam already recorded for this collection date")
	ErrInvalidCollectionDate = errors.New("invalid collection date")
	ErrIncompleteReport      = errors.New("report is missing patient identification")
)

// Exam is one parsed lab report kept in a patient's history.
type Exam struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	PatientName    string                 `db:"patient_name" json:"patient_name"`
	CollectionDate string                 `db:"collection_date" json:"collection_date"`
	CollectedOn    time.Time              `db:"collected_on" json:"collected_on"`
	SourceName     string                 `db:"source_name" json:"source_name,omitempty"`
	Result         *labreport.ParseResult `db:"result" json:"result"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
}

// ParseCollectionDate reads a dd/mm/yyyy date.
func ParseCollectionDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidCollectionDate)
	}
	t, err := time.Parse(CollectionDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCollectionDate, s)
	}
	return t, nil
}

// NewExam builds an Exam from a parse result. The result must carry both the
// patient name and a valid collection date.
func NewExam(source string, r *labreport.ParseResult) (*Exam, error) {
	if r == nil || r.Meta.SubjectName == "" || r.Meta.CollectionDate == "" {
		return nil, ErrIncompleteReport
	}
	on, err := ParseCollectionDate(r.Meta.CollectionDate)
	if err != nil {
		return nil, err
	}
	return &Exam{
		PatientName:    r.Meta.SubjectName,
		CollectionDate: r.Meta.CollectionDate,
		CollectedOn:    on,
		SourceName:     source,
		Result:         r,
	}, nil
}
