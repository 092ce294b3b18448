package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_users.sql":     "CREATE TABLE app_user (id UUID PRIMARY KEY);",
		"002_proposals.sql": "CREATE TABLE proposal (id UUID PRIMARY KEY);",
		"003_workflow.sql":  "CREATE TABLE workflow_event (id UUID PRIMARY KEY);",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if migrations[i].Version != want {
			t.Errorf("position %d: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[1].Name != "002_proposals.sql" {
		t.Errorf("expected filename preserved, got %s", migrations[1].Name)
	}
	if migrations[0].SQL == "" {
		t.Error("expected SQL content loaded")
	}
}

func TestLoadMigrations_SortsByVersionNotName(t *testing.T) {
	// Lexicographic file order differs from numeric version order here.
	dir := writeMigrations(t, map[string]string{
		"010_events.sql":   "SELECT 10;",
		"002_second.sql":   "SELECT 2;",
		"001_first.sql":    "SELECT 1;",
		"009_comments.sql": "SELECT 9;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 9, 10}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsOddFiles(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_users.sql": "SELECT 1;",
		"README.md":     "not a migration",
		"notes.sql":     "no numeric prefix",
		"abc_x.sql":     "still no numeric prefix",
	})
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected only the numbered .sql file, got %d", len(migrations))
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	migrations, err := NewMigrator(nil, t.TempDir()).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	if _, err := NewMigrator(nil, "/no/such/directory").LoadMigrations(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestMigrationStatus_Fields(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	s := MigrationStatus{Version: 2, Name: "002_proposals.sql", Applied: true, AppliedAt: &at}
	if !s.Applied || s.AppliedAt == nil || !s.AppliedAt.Equal(at) {
		t.Errorf("unexpected status: %+v", s)
	}

	pending := MigrationStatus{Version: 3, Name: "003_workflow.sql"}
	if pending.Applied || pending.AppliedAt != nil {
		t.Errorf("expected pending status zero values, got %+v", pending)
	}
}
