package server

import (
	"context"
	"time"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
	"github.com/FahmyAlmaliki/CheeSense/internal/storage"
)

// SeriesStore defines the interface the service needs from the durable
// time-series backend. storage.InfluxStore implements this interface.
//
// Every method degrades rather than aborts: a returned error marks the
// result as degraded and the caller falls back to the in-memory store,
// it is never surfaced as a request failure.
type SeriesStore interface {
	// Write persists one sample and flushes it so durability (or failure)
	// is observed synchronously
	Write(ctx context.Context, sample *models.Sample) error

	// QueryLatest returns the most recent sample within a bounded lookback,
	// or nil when the store holds no rows
	QueryLatest(ctx context.Context) (*models.Sample, error)

	// QueryRange returns up to limit samples in [start, end], ascending by
	// time, optionally filtered by sensor ID
	QueryRange(ctx context.Context, start, end time.Time, limit int, sensorID string) ([]*models.Sample, error)

	// Ping is a lightweight connectivity probe used only for status reporting
	Ping(ctx context.Context) error
}

// SampleArchiver defines the interface for the optional local archive.
// storage.Archiver implements this interface.
type SampleArchiver interface {
	// Enqueue queues a sample for asynchronous archival.
	// Returns false when the sample was dropped (queue full).
	Enqueue(sample *models.Sample) bool

	// Stats returns archiver statistics for status reporting
	Stats() storage.ArchiverStats
}
