package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type recordingAuditRecorder struct {
	entries []AuditEntry
	fail    bool
}

func (r *recordingAuditRecorder) RecordAccess(entry AuditEntry) error {
	if r.fail {
		return errors.New("recorder unavailable")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func auditContext(t *testing.T, method, target string, uid string, roles []string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	ctx := req.Context()
	if uid != "" {
		ctx = context.WithValue(ctx, auth.UserIDKey, uid)
	}
	if roles != nil {
		ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAudit_ProposalRead(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	recorder := &recordingAuditRecorder{}

	c, _ := auditContext(t, http.MethodGet,
		"/api/v1/proposals/7d8f5a31-9c0e-4f7b-a6ad-51e1c6a0f3d2",
		"therapist-1", []string{"therapist"})
	c.Set("request_id", "req-1")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.UserID != "therapist-1" {
		t.Errorf("unexpected user id: %s", entry.UserID)
	}
	if entry.Action != "read" {
		t.Errorf("expected action read, got %s", entry.Action)
	}
	if entry.Resource != "proposals" {
		t.Errorf("expected resource proposals, got %s", entry.Resource)
	}
	if entry.ProposalID != "7d8f5a31-9c0e-4f7b-a6ad-51e1c6a0f3d2" {
		t.Errorf("unexpected proposal id: %s", entry.ProposalID)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("unexpected request id: %s", entry.RequestID)
	}
}

func TestAudit_TransitionCreate(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	recorder := &recordingAuditRecorder{}

	c, _ := auditContext(t, http.MethodPost,
		"/api/v1/proposals/7d8f5a31-9c0e-4f7b-a6ad-51e1c6a0f3d2/workflow/transitions/draft-to-submitted",
		"therapist-1", []string{"therapist"})

	handler := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Action != "create" {
		t.Errorf("expected action create, got %s", entry.Action)
	}
	if entry.ProposalID != "7d8f5a31-9c0e-4f7b-a6ad-51e1c6a0f3d2" {
		t.Errorf("unexpected proposal id: %s", entry.ProposalID)
	}
}

func TestAudit_SkipsNonAuditablePaths(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	recorder := &recordingAuditRecorder{}

	c, _ := auditContext(t, http.MethodGet, "/health", "", nil)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.entries) != 0 {
		t.Errorf("expected no audit entries for /health, got %d", len(recorder.entries))
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	recorder := &recordingAuditRecorder{fail: true}

	c, rec := auditContext(t, http.MethodGet, "/api/v1/workflows", "admin-1", []string{"admin"})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 despite recorder failure, got %d", rec.Code)
	}
}

func TestAudit_NoRecorder_LogOnly(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	c, _ := auditContext(t, http.MethodDelete,
		"/api/v1/users/7d8f5a31-9c0e-4f7b-a6ad-51e1c6a0f3d2", "admin-1", []string{"admin"})

	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}

	mw := Audit(logger)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAudit_ProposalIDFromQuery(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	recorder := &recordingAuditRecorder{}

	c, _ := auditContext(t, http.MethodGet,
		"/api/v1/events?proposal_id=abc-123", "coord-1", []string{"coordinator"})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Audit(logger, recorder)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	if recorder.entries[0].ProposalID != "abc-123" {
		t.Errorf("unexpected proposal id: %s", recorder.entries[0].ProposalID)
	}
}

func TestIsAuditablePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/api/v1/proposals", true},
		{"/api/v1/workflows", true},
		{"/api/v1/", true},
		{"/health", false},
		{"/version", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := isAuditablePath(tt.path); got != tt.want {
			t.Errorf("isAuditablePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{http.MethodGet, "read"},
		{http.MethodHead, "read"},
		{http.MethodPost, "create"},
		{http.MethodPut, "update"},
		{http.MethodPatch, "update"},
		{http.MethodDelete, "delete"},
		{"OPTIONS", "read"},
	}
	for _, tt := range tests {
		if got := httpMethodToAction(tt.method); got != tt.want {
			t.Errorf("httpMethodToAction(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}

func TestExtractResource(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/proposals", "proposals"},
		{"/api/v1/proposals/123", "proposals"},
		{"/api/v1/workflows/proposal-approval", "workflows"},
		{"/api/v1/", "unknown"},
		{"/other", "unknown"},
	}
	for _, tt := range tests {
		if got := extractResource(tt.path); got != tt.want {
			t.Errorf("extractResource(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var seen AuditEntry
	f := AuditRecorderFunc(func(entry AuditEntry) error {
		seen = entry
		return nil
	})
	if err := f.RecordAccess(AuditEntry{UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.UserID != "u1" {
		t.Errorf("expected entry to pass through, got %+v", seen)
	}
}
