package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// setupTestArchive creates an archive backed by a temp database
func setupTestArchive(t *testing.T) *Archive {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	archive, err := NewArchive(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })

	return archive
}

// archiveSample builds a sample for archive tests
func archiveSample(sensorID string, ts time.Time) *models.Sample {
	return &models.Sample{
		SensorID:  sensorID,
		Timestamp: ts,
		F1:        400, F6: 650, Clear: 800, Nir: 350,
	}
}

func TestArchive_InsertBatch(t *testing.T) {
	archive := setupTestArchive(t)

	now := time.Now().UTC()
	batch := []*models.Sample{
		archiveSample("s1", now.Add(-2*time.Minute)),
		archiveSample("s1", now.Add(-time.Minute)),
		archiveSample("s2", now),
	}

	if err := archive.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	stats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSamples != 3 {
		t.Errorf("TotalSamples = %d, want 3", stats.TotalSamples)
	}
	if stats.UniqueSensors != 2 {
		t.Errorf("UniqueSensors = %d, want 2", stats.UniqueSensors)
	}
	if stats.OldestSample.IsZero() || stats.NewestSample.IsZero() {
		t.Error("Stats should report oldest and newest sample times")
	}
}

func TestArchive_InsertBatchEmpty(t *testing.T) {
	archive := setupTestArchive(t)

	if err := archive.InsertBatch(nil); err != nil {
		t.Errorf("InsertBatch(nil) should be a no-op, got %v", err)
	}
}

func TestArchive_DeleteOlderThan(t *testing.T) {
	archive := setupTestArchive(t)

	now := time.Now().UTC()
	batch := []*models.Sample{
		archiveSample("s1", now.AddDate(0, 0, -40)),
		archiveSample("s1", now.AddDate(0, 0, -35)),
		archiveSample("s1", now),
	}
	if err := archive.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	deleted, err := archive.DeleteOlderThan(30)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	stats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSamples != 1 {
		t.Errorf("TotalSamples = %d after cleanup, want 1", stats.TotalSamples)
	}
}

func TestArchive_StatsEmpty(t *testing.T) {
	archive := setupTestArchive(t)

	stats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSamples != 0 {
		t.Errorf("TotalSamples = %d, want 0", stats.TotalSamples)
	}
	if !stats.OldestSample.IsZero() {
		t.Error("OldestSample should be zero for an empty archive")
	}
}

func TestRetentionCleaner(t *testing.T) {
	archive := setupTestArchive(t)
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	now := time.Now().UTC()
	batch := []*models.Sample{
		archiveSample("s1", now.AddDate(0, 0, -60)),
		archiveSample("s1", now),
	}
	if err := archive.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	cleaner := NewRetentionCleaner(archive, RetentionCleanerConfig{
		RetentionDays: 30,
		CleanupPeriod: time.Hour,
	}, logger)
	defer cleaner.Stop()

	cleaner.RunNow()

	stats := cleaner.Stats()
	if stats.TotalDeleted < 1 {
		t.Errorf("TotalDeleted = %d, want at least 1", stats.TotalDeleted)
	}
	if stats.TotalCleanups < 1 {
		t.Errorf("TotalCleanups = %d, want at least 1", stats.TotalCleanups)
	}

	archiveStats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if archiveStats.TotalSamples != 1 {
		t.Errorf("TotalSamples = %d after cleanup, want 1", archiveStats.TotalSamples)
	}
}
