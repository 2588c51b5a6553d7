package examhistory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/labreport/labreport/internal/domain/labreport"
)

// -- Mock Repository --

type mockExamRepo struct {
	store     map[uuid.UUID]*Exam
	lookupErr error
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{store: make(map[uuid.UUID]*Exam)}
}

func (m *mockExamRepo) Create(_ context.Context, e *Exam) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.store[e.ID] = e
	return nil
}

func (m *mockExamRepo) GetByID(_ context.Context, id uuid.UUID) (*Exam, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, ErrExamNotFound
	}
	return e, nil
}

func (m *mockExamRepo) sorted(keep func(*Exam) bool) []*Exam {
	var out []*Exam
	for _, e := range m.store {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedOn.After(out[j].CollectedOn) })
	return out
}

func page(items []*Exam, limit, offset int) []*Exam {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *mockExamRepo) ListByPatient(_ context.Context, patientName string, limit, offset int) ([]*Exam, int, error) {
	all := m.sorted(func(e *Exam) bool { return e.PatientName == patientName })
	return page(all, limit, offset), len(all), nil
}

func (m *mockExamRepo) FindByCollectionDate(_ context.Context, patientName, collectionDate string) (*Exam, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, e := range m.store {
		if e.PatientName == patientName && e.CollectionDate == collectionDate {
			return e, nil
		}
	}
	return nil, ErrExamNotFound
}

func (m *mockExamRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrExamNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockExamRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Exam, int, error) {
	all := m.sorted(func(e *Exam) bool {
		if p := params["patient"]; p != "" && !strings.Contains(strings.ToLower(e.PatientName), strings.ToLower(p)) {
			return false
		}
		if d := params["date"]; d != "" && e.CollectionDate != d {
			return false
		}
		return true
	})
	return page(all, limit, offset), len(all), nil
}

func report(name, date, creatinine string) string {
	return "Resultados de Exames para PEP\n" +
		"Dados do Paciente:\n" +
		"● Nome: " + name + "\n" +
		"● Data da Coleta: " + date + "\n" +
		"Resultados:\n" +
		"● Hemograma:\n" +
		"○ Hemoglobina: 11,4 g/dL (Referência: 13,0 a 17,0 g/dL)\n" +
		"● Creatinina: " + creatinine + " mg/dL (Referência: Adultos: 0,5-1,00 mg/dL)\n"
}

func newTestService() (*Service, *mockExamRepo) {
	repo := newMockExamRepo()
	return NewService(repo, labreport.DefaultProfile()), repo
}

func TestService_Parse(t *testing.T) {
	svc, _ := newTestService()
	res, err := svc.Parse(report("Ana Lima", "10/03/2025", "1,20"), svc.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta.SubjectName != "Ana Lima" {
		t.Errorf("expected subject Ana Lima, got %q", res.Meta.SubjectName)
	}
	if _, ok := res.Find(labreport.CategoryBiochemistry, "Creatinina"); !ok {
		t.Error("expected creatinine in biochemistry")
	}
}

func TestService_Parse_InvalidProfile(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Parse("● Nome: Ana", labreport.Profile{Age: 7})
	if !errors.Is(err, labreport.ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile, got %v", err)
	}
}

func TestService_Ingest(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	exam, err := svc.Ingest(ctx, "marco.txt", report("Ana Lima", "10/03/2025", "1,20"), svc.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exam.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if exam.SourceName != "marco.txt" || exam.PatientName != "Ana Lima" {
		t.Errorf("unexpected exam: %+v", exam)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored exam, got %d", len(repo.store))
	}
}

func TestService_Ingest_Duplicate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "a.txt", report("Ana Lima", "10/03/2025", "1,20"), svc.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	existing, err := svc.Ingest(ctx, "b.txt", report("Ana Lima", "10/03/2025", "2,00"), svc.DefaultProfile())
	if !errors.Is(err, ErrDuplicateExam) {
		t.Fatalf("expected ErrDuplicateExam, got %v", err)
	}
	if existing == nil || existing.ID != first.ID {
		t.Error("duplicate should return the exam already on file")
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored exam, got %d", len(repo.store))
	}
}

// racingRepo stores a competing exam right before Create, mimicking a
// concurrent ingest that wins the unique key.
type racingRepo struct {
	*mockExamRepo
	winner *Exam
}

func (r *racingRepo) Create(ctx context.Context, e *Exam) error {
	r.winner = &Exam{PatientName: e.PatientName, CollectionDate: e.CollectionDate, CollectedOn: e.CollectedOn}
	r.mockExamRepo.Create(ctx, r.winner)
	return ErrDuplicateExam
}

func TestService_Ingest_LostRace(t *testing.T) {
	repo := &racingRepo{mockExamRepo: newMockExamRepo()}
	svc := NewService(repo, labreport.DefaultProfile())

	existing, err := svc.Ingest(context.Background(), "a.txt", report("Ana Lima", "10/03/2025", "1,20"), svc.DefaultProfile())
	if !errors.Is(err, ErrDuplicateExam) {
		t.Fatalf("expected ErrDuplicateExam, got %v", err)
	}
	if existing == nil || existing.ID != repo.winner.ID {
		t.Errorf("expected the winning exam, got %+v", existing)
	}
}

func TestService_Ingest_Incomplete(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Ingest(context.Background(), "", "● Creatinina: 1,2 mg/dL (Referência: 0,5-1,0)", svc.DefaultProfile())
	if !errors.Is(err, ErrIncompleteReport) {
		t.Errorf("expected ErrIncompleteReport, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("incomplete report must not be stored")
	}
}

func TestService_Ingest_LookupError(t *testing.T) {
	svc, repo := newTestService()
	repo.lookupErr = errors.New("connection reset")
	_, err := svc.Ingest(context.Background(), "", report("Ana Lima", "10/03/2025", "1,20"), svc.DefaultProfile())
	if err == nil || errors.Is(err, ErrDuplicateExam) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if !errors.Is(err, repo.lookupErr) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

func seedHistory(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for date, cr := range map[string]string{
		"10/03/2025": "3,18",
		"02/01/2025": "2,10",
		"20/11/2024": "1,80",
	} {
		if _, err := svc.Ingest(ctx, "", report("Ana Lima", date, cr), svc.DefaultProfile()); err != nil {
			t.Fatalf("seed %s: %v", date, err)
		}
	}
}

func TestService_Trend(t *testing.T) {
	svc, _ := newTestService()
	seedHistory(t, svc)

	tr, err := svc.Trend(context.Background(), "Ana Lima", labreport.CategoryBiochemistry, "Creatinina")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(tr.Points))
	}
	if tr.Points[0].Value != 1.80 || tr.Points[2].Value != 3.18 {
		t.Errorf("points not in chronological order: %+v", tr.Points)
	}
	if tr.Reference == nil || tr.Reference.Max != 1.0 {
		t.Errorf("unexpected reference: %+v", tr.Reference)
	}
}

func TestService_Trend_Errors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Trend(ctx, "Ana Lima", labreport.CategoryImaging, "Rins"); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("imaging: expected ErrInsufficientData, got %v", err)
	}
	if _, err := svc.Trend(ctx, "Ana Lima", labreport.CategoryBiochemistry, "Creatinina"); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("no history: expected ErrInsufficientData, got %v", err)
	}
}

func TestService_Metrics(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Metrics(ctx, "Ana Lima"); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound, got %v", err)
	}

	seedHistory(t, svc)
	ms, err := svc.Metrics(ctx, "Ana Lima")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := map[string]bool{}
	for _, m := range ms {
		found[m.Name] = true
	}
	if !found["Hemoglobina"] || !found["Creatinina"] {
		t.Errorf("expected Hemoglobina and Creatinina, got %+v", ms)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	exam, err := svc.Ingest(ctx, "", report("Ana Lima", "10/03/2025", "1,20"), svc.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, exam.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("exam not deleted")
	}
	if _, err := svc.Get(ctx, exam.ID); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound, got %v", err)
	}
}
