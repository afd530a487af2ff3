package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAuditRepoInsertAndRecent(t *testing.T) {
	repo := NewAuditRepo(testDB(t))

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	records := []*AuditRecord{
		{
			ID:             "session-1",
			StartedAt:      base,
			FinishedAt:     base.Add(15 * time.Second),
			Language:       "english",
			DocumentType:   "xray",
			AnalyzerSource: "local",
			ResultPath:     "/results/result_1.json",
			ArtifactPath:   "/temp/scan_1.png",
		},
		{
			ID:         "session-2",
			StartedAt:  base.Add(time.Minute),
			FinishedAt: base.Add(time.Minute + 8*time.Second),
			Language:   "tamil",
			Error:      "scan failed: device timeout",
		},
	}
	for _, rec := range records {
		if err := repo.Insert(rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", rec.ID, err)
		}
	}

	recent, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() returned %d records, want 2", len(recent))
	}
	if recent[0].ID != "session-2" {
		t.Errorf("Recent()[0].ID = %q, want newest first", recent[0].ID)
	}
	if recent[0].Error == "" {
		t.Error("failed session lost its error text")
	}
	if recent[1].DocumentType != "xray" || recent[1].AnalyzerSource != "local" {
		t.Errorf("Recent()[1] = %+v, want xray/local", recent[1])
	}
}

func TestAuditRepoRecentLimit(t *testing.T) {
	repo := NewAuditRepo(testDB(t))

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := &AuditRecord{
			ID:         string(rune('a' + i)),
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 10*time.Second),
			Language:   "english",
		}
		if err := repo.Insert(rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	recent, err := repo.Recent(3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("Recent(3) returned %d records", len(recent))
	}
}

func TestAuditRepoCounts(t *testing.T) {
	repo := NewAuditRepo(testDB(t))

	total, failed, err := repo.Counts()
	if err != nil {
		t.Fatalf("Counts() on empty index error = %v", err)
	}
	if total != 0 || failed != 0 {
		t.Errorf("Counts() on empty index = %d/%d, want 0/0", total, failed)
	}

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i, errText := range []string{"", "analysis unavailable", ""} {
		rec := &AuditRecord{
			ID:         string(rune('x' + i)),
			StartedAt:  base,
			FinishedAt: base.Add(time.Duration(i) * time.Second),
			Language:   "english",
			Error:      errText,
		}
		if err := repo.Insert(rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	total, failed, err = repo.Counts()
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if total != 3 || failed != 1 {
		t.Errorf("Counts() = %d/%d, want 3/1", total, failed)
	}
}

func TestAuditRepoDuplicateIDRejected(t *testing.T) {
	repo := NewAuditRepo(testDB(t))

	rec := &AuditRecord{
		ID:         "same-id",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Language:   "english",
	}
	if err := repo.Insert(rec); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	if err := repo.Insert(rec); err == nil {
		t.Fatal("second Insert() with duplicate id expected error, got nil")
	}
}
