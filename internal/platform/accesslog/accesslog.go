// Package accesslog persists lab report access entries produced by the
// audit middleware.
package accesslog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labreport/labreport/internal/platform/db"
	"github.com/labreport/labreport/internal/platform/middleware"
)

// Outcome codes, coarser than the HTTP status.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Outcome classifies an HTTP status.
func Outcome(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return OutcomeError
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return OutcomeDenied
	case status >= http.StatusBadRequest:
		return OutcomeFailure
	}
	return OutcomeSuccess
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertQuery = `
	INSERT INTO lab_report_access_log (
		id, request_id, user_id, user_roles, action, exam_id, patient,
		method, path, ip_address, user_agent, status_code, outcome, accessed_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

// Store writes access entries to the tenant schema.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordAccess uses the tenant-scoped connection from ctx when present,
// falling back to a pooled connection.
func (s *Store) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	if conn := db.ConnFromContext(ctx); conn != nil {
		return insert(ctx, conn, e)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("access log: acquire connection: %w", err)
	}
	defer conn.Release()
	return insert(ctx, conn, e)
}

func insert(ctx context.Context, q execer, e middleware.AuditEntry) error {
	if _, err := q.Exec(ctx, insertQuery, args(e)...); err != nil {
		return fmt.Errorf("access log: insert: %w", err)
	}
	return nil
}

func args(e middleware.AuditEntry) []any {
	at := e.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	roles := e.UserRoles
	if roles == nil {
		roles = []string{}
	}
	var examID *uuid.UUID
	if id, err := uuid.Parse(e.ExamID); err == nil {
		examID = &id
	}
	return []any{
		uuid.New(), e.RequestID, e.UserID, roles, e.Action, examID, e.Patient,
		e.Method, e.Path, e.IPAddress, e.UserAgent, e.StatusCode, Outcome(e.StatusCode), at,
	}
}
