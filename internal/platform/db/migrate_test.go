package db

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/labreport/labreport/migrations"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"002_trends.sql":   {Data: []byte("CREATE INDEX t ON lab_exam (collected_on);")},
		"001_lab_exam.sql": {Data: []byte("CREATE TABLE lab_exam (id UUID PRIMARY KEY);")},
		"010_later.sql":    {Data: []byte("SELECT 10;")},
	}

	migs, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migs))
	}

	expectedVersions := []int{1, 2, 10}
	for i, expected := range expectedVersions {
		if migs[i].Version != expected {
			t.Errorf("migration[%d]: expected version %d, got %d", i, expected, migs[i].Version)
		}
	}
	if migs[0].Name != "001_lab_exam.sql" {
		t.Errorf("expected name 001_lab_exam.sql, got %s", migs[0].Name)
	}
	if migs[0].SQL != "CREATE TABLE lab_exam (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migs[0].SQL)
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	files := fstest.MapFS{
		"001_valid.sql":      {Data: []byte("SELECT 1;")},
		"readme.sql":         {Data: []byte("-- no version prefix")},
		"notes.txt":          {Data: []byte("not a sql file")},
		"abc_invalid.sql":    {Data: []byte("-- non-numeric prefix")},
		"002_also_valid.sql": {Data: []byte("SELECT 2;")},
		"sub/003_nested.sql": {Data: []byte("SELECT 3;")},
	}

	migs, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migs))
	}
	if migs[0].Version != 1 || migs[1].Version != 2 {
		t.Errorf("unexpected versions: %d, %d", migs[0].Version, migs[1].Version)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, files).LoadMigrations(); err == nil {
		t.Error("expected error for duplicate versions")
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	migs, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migs))
	}

	if _, err := NewMigrator(nil, nil).LoadMigrations(); err == nil {
		t.Error("expected error without a file system")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	migs, err := NewMigrator(nil, migrations.FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) == 0 || migs[0].Version != 1 {
		t.Fatalf("expected embedded migrations starting at version 1, got %+v", migs)
	}
}

func TestPendingAndStatuses(t *testing.T) {
	migs := []Migration{
		{Version: 1, Name: "001_lab_exam.sql"},
		{Version: 2, Name: "002_trends.sql"},
		{Version: 3, Name: "003_more.sql"},
	}
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	applied := map[int]time.Time{1: at, 3: at}

	pending := Pending(migs, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("expected only version 2 pending, got %+v", pending)
	}

	st := statuses(migs, applied)
	if len(st) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(st))
	}
	if !st[0].Applied || st[0].AppliedAt == nil || !st[0].AppliedAt.Equal(at) {
		t.Errorf("version 1 should be applied at %v: %+v", at, st[0])
	}
	if st[1].Applied || st[1].AppliedAt != nil {
		t.Errorf("version 2 should be pending: %+v", st[1])
	}
}
