package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

const auditPathPrefix = "/api/v1/"

// AuditEntry is one line of the access trail: who touched which resource,
// how, from where, and what the server answered.
type AuditEntry struct {
	Timestamp    time.Time
	RequestID    string
	UserID       string
	UserRole     string
	Action       string // read, create, update, delete
	ResourceType string
	PatientID    string
	Method       string
	Path         string
	IPAddress    string
	UserAgent    string
	StatusCode   int
}

// AuditRecorder persists entries to a durable sink. The middleware always
// emits the structured log line; recorders are an optional second copy.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc adapts a function to AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit writes an access-trail line for every request under /api/v1. The
// handler runs first so the entry carries the real response status. Recorder
// failures are logged and never fail the request itself.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, auditPathPrefix) {
				return next(c)
			}

			err := next(c)
			entry := newAuditEntry(c)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("user_role", entry.UserRole).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

func newAuditEntry(c echo.Context) AuditEntry {
	req := c.Request()
	entry := AuditEntry{
		Timestamp:    time.Now().UTC(),
		Action:       actionForMethod(req.Method),
		ResourceType: resourceFromPath(req.URL.Path),
		PatientID:    patientIDFrom(c),
		Method:       req.Method,
		Path:         req.URL.Path,
		IPAddress:    c.RealIP(),
		UserAgent:    req.UserAgent(),
		StatusCode:   c.Response().Status,
	}
	if rid, ok := c.Get("request_id").(string); ok {
		entry.RequestID = rid
	}
	if p := auth.PrincipalFromContext(req.Context()); !p.IsAnonymous() {
		entry.UserID = p.UserID.String()
		entry.UserRole = p.Role
	}
	return entry
}

func actionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath names the collection a request touched:
// /api/v1/patients/123 -> patients.
func resourceFromPath(path string) string {
	rest := strings.TrimPrefix(path, auditPathPrefix)
	if rest == path {
		return "unknown"
	}
	resource, _, _ := strings.Cut(rest, "/")
	if resource == "" {
		return "unknown"
	}
	return resource
}

// patientIDFrom pulls the subject patient out of the request when one is
// addressable: the patient detail route, per-patient sublists, or an explicit
// patient_id query parameter.
func patientIDFrom(c echo.Context) string {
	path := c.Request().URL.Path
	for _, prefix := range []string{
		"/api/v1/patients/",
		"/api/v1/appointments/patient/",
		"/api/v1/medical-records/patient/",
	} {
		rest := strings.TrimPrefix(path, prefix)
		if rest == path {
			continue
		}
		id, _, _ := strings.Cut(rest, "/")
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return c.QueryParam("patient_id")
}
