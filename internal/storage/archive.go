package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// Archive is the optional local SQLite archive of accepted samples. It is
// write-only operational tooling: queries are served by the durable store
// or the fallback ring buffer, never from here.
type Archive struct {
	db     *sql.DB
	logger zerolog.Logger
}

// ArchiveStats contains information about the archive database
type ArchiveStats struct {
	TotalSamples   int64     `json:"total_samples"`
	OldestSample   time.Time `json:"oldest_sample,omitempty"`
	NewestSample   time.Time `json:"newest_sample,omitempty"`
	UniqueSensors  int       `json:"unique_sensors"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}

const sqliteTimeFormat = "2006-01-02 15:04:05.999999999"

// NewArchive opens (or creates) the archive database at the given path
func NewArchive(dbPath string, logger zerolog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	archive := &Archive{
		db:     db,
		logger: logger,
	}

	if err := archive.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("Sample archive initialized")

	return archive, nil
}

// Close closes the database connection
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (a *Archive) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_id TEXT NOT NULL,
		f1 REAL NOT NULL, f2 REAL NOT NULL, f3 REAL NOT NULL, f4 REAL NOT NULL,
		f5 REAL NOT NULL, f6 REAL NOT NULL, f7 REAL NOT NULL, f8 REAL NOT NULL,
		clear REAL NOT NULL,
		nir REAL NOT NULL,
		recorded_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_samples_sensor_time ON samples(sensor_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_samples_time ON samples(recorded_at DESC);
	`

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	a.logger.Debug().Msg("Archive schema migrated")
	return nil
}

// InsertBatch inserts multiple samples in a single transaction
func (a *Archive) InsertBatch(samples []*models.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO samples (sensor_id, f1, f2, f3, f4, f5, f6, f7, f8, clear, nir, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		_, err := stmt.Exec(
			s.SensorID,
			s.F1, s.F2, s.F3, s.F4, s.F5, s.F6, s.F7, s.F8,
			s.Clear, s.Nir,
			s.Timestamp.UTC().Format(sqliteTimeFormat),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.logger.Debug().Int("count", len(samples)).Msg("Batch insert completed")
	return nil
}

// DeleteOlderThan removes samples recorded more than the given number of
// days ago and returns the number of rows deleted
func (a *Archive) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := a.db.Exec(
		`DELETE FROM samples WHERE recorded_at < ?`,
		cutoff.Format(sqliteTimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old samples: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Stats returns statistics about the archive database
func (a *Archive) Stats() (*ArchiveStats, error) {
	stats := &ArchiveStats{}

	row := a.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(MIN(recorded_at), ''),
		       COALESCE(MAX(recorded_at), ''),
		       COUNT(DISTINCT sensor_id)
		FROM samples
	`)

	var oldest, newest string
	if err := row.Scan(&stats.TotalSamples, &oldest, &newest, &stats.UniqueSensors); err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}

	if oldest != "" {
		if ts, err := parseTimestamp(oldest); err == nil {
			stats.OldestSample = ts
		}
	}
	if newest != "" {
		if ts, err := parseTimestamp(newest); err == nil {
			stats.NewestSample = ts
		}
	}

	var pageCount, pageSize int64
	if err := a.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := a.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return stats, nil
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		sqliteTimeFormat,
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, format := range formats {
		if parsed, err := time.Parse(format, ts); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", ts)
}
