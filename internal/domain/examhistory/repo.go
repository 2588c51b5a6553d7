package examhistory

import (
	"context"

	"github.com/google/uuid"
)

type ExamRepository interface {
	Create(ctx context.Context, e *Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exam, error)
	ListByPatient(ctx context.Context, patientName string, limit, offset int) ([]*Exam, int, error)
	FindByCollectionDate(ctx context.Context, patientName, collectionDate string) (*Exam, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Exam, int, error)
}
