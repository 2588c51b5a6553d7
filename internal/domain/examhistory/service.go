package examhistory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/labreport/labreport/internal/domain/labreport"
)

// maxTrendExams bounds how many exams of one patient feed a trend or the
// metric catalogue.
const maxTrendExams = 500

type Service struct {
	repo    ExamRepository
	profile labreport.Profile
}

// NewService returns a Service that falls back to profile whenever a caller
// does not supply the eGFR inputs.
func NewService(repo ExamRepository, profile labreport.Profile) *Service {
	return &Service{repo: repo, profile: profile}
}

func (s *Service) DefaultProfile() labreport.Profile { return s.profile }

// Parse runs the extraction engine without touching storage.
func (s *Service) Parse(text string, p labreport.Profile) (*labreport.ParseResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return labreport.Parse(text, p)
}

// Ingest parses text and records the exam for its patient. A second report
// for the same patient and collection date yields ErrDuplicateExam along with
// the exam already on file.
func (s *Service) Ingest(ctx context.Context, source, text string, p labreport.Profile) (*Exam, error) {
	res, err := s.Parse(text, p)
	if err != nil {
		return nil, err
	}
	exam, err := NewExam(source, res)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCollectionDate(ctx, exam.PatientName, exam.CollectionDate)
	switch {
	case err == nil:
		return existing, ErrDuplicateExam
	case !errors.Is(err, ErrExamNotFound):
		return nil, fmt.Errorf("look up exam: %w", err)
	}

	if err := s.repo.Create(ctx, exam); err != nil {
		if errors.Is(err, ErrDuplicateExam) {
			// Lost a race with a concurrent ingest of the same report.
			existing, lookupErr := s.repo.FindByCollectionDate(ctx, exam.PatientName, exam.CollectionDate)
			if lookupErr != nil {
				return nil, fmt.Errorf("look up exam: %w", lookupErr)
			}
			return existing, ErrDuplicateExam
		}
		return nil, fmt.Errorf("store exam: %w", err)
	}
	return exam, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientName string, limit, offset int) ([]*Exam, int, error) {
	return s.repo.ListByPatient(ctx, patientName, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Exam, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// History loads the patient's exams into a History, most recent first.
func (s *Service) History(ctx context.Context, patientName string) (*History, error) {
	exams, _, err := s.repo.ListByPatient(ctx, patientName, maxTrendExams, 0)
	if err != nil {
		return nil, err
	}
	return NewHistory(exams), nil
}

// Trend returns the series of one metric across the patient's exams.
func (s *Service) Trend(ctx context.Context, patientName string, category labreport.Category, name string) (*Trend, error) {
	if !category.Valid() || category == labreport.CategoryImaging {
		return nil, fmt.Errorf("%w: category %q has no numeric values", ErrInsufficientData, category)
	}
	h, err := s.History(ctx, patientName)
	if err != nil {
		return nil, err
	}
	return BuildTrend(h.Exams(), category, name)
}

// Metrics lists the chartable measurements of the patient's latest exam.
func (s *Service) Metrics(ctx context.Context, patientName string) ([]Metric, error) {
	h, err := s.History(ctx, patientName)
	if err != nil {
		return nil, err
	}
	latest := h.Latest()
	if latest == nil {
		return nil, ErrExamNotFound
	}
	return AvailableMetrics(latest.Result, h.Exams()[1:]), nil
}
