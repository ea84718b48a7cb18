package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const diaryDateLayout = "2006-01-02"

// HygieneConfig controls the daily diary archive/purge sweep of
// SPEC_FULL.md §4.6.
type HygieneConfig struct {
	MemoryDir   string
	ArchiveDays int
	PurgeDays   int
}

// RunHygiene moves diary files (YYYY-MM-DD.md) older than ArchiveDays from
// MemoryDir to MemoryDir/archive, then deletes archived files older than
// PurgeDays. Ages are computed from filename dates, not filesystem
// timestamps; a file exactly ArchiveDays old is kept (SPEC_FULL.md §4.6).
func RunHygiene(cfg HygieneConfig, at time.Time) error {
	today := at.UTC()
	archiveDir := filepath.Join(cfg.MemoryDir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("memory: create archive dir: %w", err)
	}

	if err := archiveOldDiaries(cfg.MemoryDir, archiveDir, today, cfg.ArchiveDays); err != nil {
		return err
	}
	return purgeOldArchives(archiveDir, today, cfg.PurgeDays)
}

func archiveOldDiaries(memoryDir, archiveDir string, today time.Time, archiveDays int) error {
	entries, err := os.ReadDir(memoryDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("memory: read memory dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := diaryDate(entry.Name())
		if !ok {
			continue
		}
		if ageInDays(date, today) <= archiveDays {
			continue
		}
		src := filepath.Join(memoryDir, entry.Name())
		dst := filepath.Join(archiveDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("memory: archive %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func purgeOldArchives(archiveDir string, today time.Time, purgeDays int) error {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("memory: read archive dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := diaryDate(entry.Name())
		if !ok {
			continue
		}
		if ageInDays(date, today) <= purgeDays {
			continue
		}
		path := filepath.Join(archiveDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("memory: purge %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// diaryDate parses a YYYY-MM-DD.md filename. The curated long-term file
// (any name that doesn't match this pattern) is never touched.
func diaryDate(name string) (time.Time, bool) {
	if !strings.HasSuffix(name, ".md") {
		return time.Time{}, false
	}
	stem := strings.TrimSuffix(name, ".md")
	t, err := time.Parse(diaryDateLayout, stem)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ageInDays is the whole-day difference between today and date, computed
// from calendar dates rather than wall-clock duration.
func ageInDays(date, today time.Time) int {
	d := date.Truncate(24 * time.Hour)
	t := today.Truncate(24 * time.Hour)
	return int(t.Sub(d).Hours() / 24)
}
