package storage

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// setupTestArchiver creates a test archive and writer
func setupTestArchiver(t *testing.T, config ArchiverConfig) (*Archive, *Archiver) {
	t.Helper()

	archive := setupTestArchive(t)
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	writer := NewArchiver(archive, config, logger)
	t.Cleanup(writer.Stop)

	return archive, writer
}

func TestArchiver_Enqueue(t *testing.T) {
	_, writer := setupTestArchiver(t, DefaultArchiverConfig())

	ok := writer.Enqueue(archiveSample("s1", time.Now().UTC()))
	if !ok {
		t.Error("Enqueue should return true when channel has space")
	}
}

func TestArchiver_BatchFlush(t *testing.T) {
	config := ArchiverConfig{
		BatchSize:   10,
		FlushPeriod: 5 * time.Second, // Long period so we test the batch size trigger
		ChannelSize: 100,
	}
	archive, writer := setupTestArchiver(t, config)

	for i := 0; i < 10; i++ {
		writer.Enqueue(archiveSample("s1", time.Now().UTC()))
	}

	// Give the writer loop time to flush
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if writer.Stats().TotalWritten == 10 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	stats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSamples != 10 {
		t.Errorf("TotalSamples = %d, want 10", stats.TotalSamples)
	}

	wstats := writer.Stats()
	if wstats.TotalBatches != 1 {
		t.Errorf("TotalBatches = %d, want 1", wstats.TotalBatches)
	}
}

func TestArchiver_PeriodicFlush(t *testing.T) {
	config := ArchiverConfig{
		BatchSize:   100, // Large batch so only the ticker can flush
		FlushPeriod: 50 * time.Millisecond,
		ChannelSize: 100,
	}
	archive, writer := setupTestArchiver(t, config)

	writer.Enqueue(archiveSample("s1", time.Now().UTC()))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if writer.Stats().TotalWritten == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	stats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSamples != 1 {
		t.Errorf("TotalSamples = %d, want 1 after periodic flush", stats.TotalSamples)
	}
}

func TestArchiver_StopDrainsQueue(t *testing.T) {
	config := ArchiverConfig{
		BatchSize:   1000,
		FlushPeriod: time.Hour, // Neither trigger fires before Stop
		ChannelSize: 100,
	}
	archive, writer := setupTestArchiver(t, config)

	for i := 0; i < 25; i++ {
		writer.Enqueue(archiveSample("s1", time.Now().UTC()))
	}

	writer.Stop()

	stats, err := archive.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSamples != 25 {
		t.Errorf("TotalSamples = %d after Stop, want 25", stats.TotalSamples)
	}
}

func TestArchiver_DropsWhenFull(t *testing.T) {
	config := ArchiverConfig{
		BatchSize:   1000,
		FlushPeriod: time.Hour,
		ChannelSize: 2,
	}
	_, writer := setupTestArchiver(t, config)

	// With the writer loop stopped nothing consumes the channel,
	// so drops are deterministic
	writer.Stop()

	dropped := 0
	for i := 0; i < 10; i++ {
		if !writer.Enqueue(archiveSample("s1", time.Now().UTC())) {
			dropped++
		}
	}

	if dropped != 8 {
		t.Errorf("dropped = %d, want 8", dropped)
	}
	if writer.Stats().TotalDropped != 8 {
		t.Errorf("TotalDropped = %d, want 8", writer.Stats().TotalDropped)
	}
}
