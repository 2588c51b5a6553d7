package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labreport/labreport/internal/platform/auth"
)

// AuditEntry records who touched which lab report, when and how.
type AuditEntry struct {
	Timestamp  time.Time
	RequestID  string
	UserID     string
	UserRoles  []string
	TenantID   string
	Action     string // read, search, parse, ingest, export, delete
	ExamID     string
	Patient    string
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	StatusCode int
}

// AuditRecorder persists audit entries. The middleware always logs the entry
// as well, so a recorder is optional.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs access to patient lab data under /api/v1/lab-reports.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditablePath(req.URL.Path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			ctx := req.Context()
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Action:     auditAction(req.Method, req.URL.Path),
				ExamID:     examIDFromPath(req.URL.Path),
				Patient:    c.QueryParam("patient"),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.TenantID, _ = c.Get("tenant_id").(string)

			if recorder != nil {
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("tenant_id", entry.TenantID).
				Str("action", entry.Action).
				Str("exam_id", entry.ExamID).
				Str("patient", entry.Patient).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("lab_report_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/lab-reports")
}

func auditAction(method, path string) string {
	path = strings.TrimSuffix(path, "/")
	switch {
	case method == http.MethodDelete:
		return "delete"
	case strings.HasSuffix(path, "/parse"):
		return "parse"
	case strings.HasSuffix(path, "/export"):
		return "export"
	case method == http.MethodPost:
		return "ingest"
	case examIDFromPath(path) != "":
		return "read"
	}
	return "search"
}

// examIDFromPath returns the exam UUID in /api/v1/lab-reports/<id>[/...].
func examIDFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/lab-reports/")
	if rest == path {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	if _, err := uuid.Parse(seg); err != nil {
		return ""
	}
	return seg
}
