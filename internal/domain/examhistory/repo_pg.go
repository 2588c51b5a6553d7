package examhistory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labreport/labreport/internal/domain/labreport"
	"github.com/labreport/labreport/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type examRepoPG struct{ pool *pgxpool.Pool }

func NewExamRepoPG(pool *pgxpool.Pool) ExamRepository {
	return &examRepoPG{pool: pool}
}

func (r *examRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// uniqueViolation is the SQLSTATE raised by the (patient_name, collection_date) key.
const uniqueViolation = "23505"

const examCols = `id, patient_name, collection_date, collected_on, source_name, result, created_at`

func (r *examRepoPG) scanRow(row pgx.Row) (*Exam, error) {
	var e Exam
	var raw []byte
	err := row.Scan(&e.ID, &e.PatientName, &e.CollectionDate, &e.CollectedOn, &e.SourceName, &raw, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Result = &labreport.ParseResult{}
	if err := json.Unmarshal(raw, e.Result); err != nil {
		return nil, fmt.Errorf("decode exam %s result: %w", e.ID, err)
	}
	return &e, nil
}

func (r *examRepoPG) scanRows(rows pgx.Rows) ([]*Exam, error) {
	defer rows.Close()
	var items []*Exam
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *examRepoPG) Create(ctx context.Context, e *Exam) error {
	e.ID = uuid.New()
	raw, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("encode exam result: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_exam (id, patient_name, collection_date, collected_on, source_name, result)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		e.ID, e.PatientName, e.CollectionDate, e.CollectedOn, e.SourceName, raw).Scan(&e.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateExam
	}
	return err
}

func (r *examRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+examCols+` FROM lab_exam WHERE id = $1`, id))
}

func (r *examRepoPG) FindByCollectionDate(ctx context.Context, patientName, collectionDate string) (*Exam, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+examCols+` FROM lab_exam WHERE patient_name = $1 AND collection_date = $2`,
		patientName, collectionDate))
}

func (r *examRepoPG) ListByPatient(ctx context.Context, patientName string, limit, offset int) ([]*Exam, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_exam WHERE patient_name = $1`, patientName).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+examCols+` FROM lab_exam WHERE patient_name = $1
		ORDER BY collected_on DESC LIMIT $2 OFFSET $3`, patientName, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *examRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_exam WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExamNotFound
	}
	return nil
}

// Search filters on patient (substring), date (exact dd/mm/yyyy), from/to
// (yyyy-mm-dd bounds on the collection day) and abnormal=true, which keeps
// exams with at least one flagged measurement.
func (r *examRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Exam, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient"]; ok {
		where += fmt.Sprintf(` AND patient_name ILIKE '%%' || $%d || '%%'`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["date"]; ok {
		where += fmt.Sprintf(` AND collection_date = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["from"]; ok {
		where += fmt.Sprintf(` AND collected_on >= $%d::date`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["to"]; ok {
		where += fmt.Sprintf(` AND collected_on <= $%d::date`, idx)
		args = append(args, p)
		idx++
	}
	if params["abnormal"] == "true" {
		where += ` AND jsonb_path_exists(result, '$.results.*[*] ? (@.is_abnormal == true)')`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_exam`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examCols + ` FROM lab_exam` + where +
		fmt.Sprintf(` ORDER BY collected_on DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
