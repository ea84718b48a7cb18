package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHygieneArchivesOldDiariesAndKeepsBoundary(t *testing.T) {
	dir := t.TempDir()
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	writeDiary(t, dir, "2026-03-10.md") // age 0, kept in place
	writeDiary(t, dir, "2026-03-03.md") // age 7, exactly archive_days: kept in place
	writeDiary(t, dir, "2026-03-02.md") // age 8, archived
	writeOther(t, dir, "notes.md")      // not diary-shaped, never touched

	err := RunHygiene(HygieneConfig{MemoryDir: dir, ArchiveDays: 7, PurgeDays: 30}, today)
	if err != nil {
		t.Fatalf("RunHygiene: %v", err)
	}

	assertExists(t, filepath.Join(dir, "2026-03-10.md"))
	assertExists(t, filepath.Join(dir, "2026-03-03.md"))
	assertExists(t, filepath.Join(dir, "notes.md"))
	assertNotExists(t, filepath.Join(dir, "2026-03-02.md"))
	assertExists(t, filepath.Join(dir, "archive", "2026-03-02.md"))
}

func TestHygienePurgesArchivesPastPurgeDaysAndKeepsBoundary(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	writeDiary(t, archiveDir, "2026-02-08.md") // age 30, exactly purge_days: kept
	writeDiary(t, archiveDir, "2026-02-07.md") // age 31, purged

	if err := RunHygiene(HygieneConfig{MemoryDir: dir, ArchiveDays: 7, PurgeDays: 30}, today); err != nil {
		t.Fatalf("RunHygiene: %v", err)
	}

	assertExists(t, filepath.Join(archiveDir, "2026-02-08.md"))
	assertNotExists(t, filepath.Join(archiveDir, "2026-02-07.md"))
}

func writeDiary(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("diary entry"), 0o644); err != nil {
		t.Fatalf("write diary %s: %v", name, err)
	}
}

func writeOther(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("curated notes"), 0o644); err != nil {
		t.Fatalf("write file %s: %v", name, err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to not exist, stat err=%v", path, err)
	}
}
