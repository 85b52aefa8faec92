package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCleanupPeriod = 1 * time.Hour

// RetentionCleanerConfig controls how far back the archive keeps samples
// and how often expired rows are swept.
type RetentionCleanerConfig struct {
	RetentionDays int
	CleanupPeriod time.Duration
}

// RetentionCleanerStats is a snapshot of the cleaner's counters.
type RetentionCleanerStats struct {
	TotalDeleted  int64     `json:"total_deleted"`
	TotalCleanups int64     `json:"total_cleanups"`
	LastCleanup   time.Time `json:"last_cleanup,omitempty"`
	LastDeleted   int64     `json:"last_deleted"`
	RetentionDays int       `json:"retention_days"`
}

// RetentionCleaner deletes archived samples older than the retention window
// on a fixed schedule. A retention of zero days disables deletion but the
// loop still runs so Stats stays live.
type RetentionCleaner struct {
	archive *Archive
	logger  zerolog.Logger
	cfg     RetentionCleanerConfig

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu    sync.Mutex
	stats RetentionCleanerStats
}

// NewRetentionCleaner starts the background sweep loop immediately.
func NewRetentionCleaner(archive *Archive, cfg RetentionCleanerConfig, logger zerolog.Logger) *RetentionCleaner {
	if cfg.CleanupPeriod <= 0 {
		logger.Warn().
			Dur("cleanup_period", cfg.CleanupPeriod).
			Dur("default", defaultCleanupPeriod).
			Msg("Cleanup period not positive, using default")
		cfg.CleanupPeriod = defaultCleanupPeriod
	}

	c := &RetentionCleaner{
		archive: archive,
		logger:  logger,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
	c.stats.RetentionDays = cfg.RetentionDays

	c.wg.Add(1)
	go c.loop()

	logger.Info().
		Int("retention_days", cfg.RetentionDays).
		Dur("cleanup_period", cfg.CleanupPeriod).
		Msg("Archive retention cleaner started")

	return c
}

func (c *RetentionCleaner) loop() {
	defer c.wg.Done()

	c.sweep()

	ticker := time.NewTicker(c.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *RetentionCleaner) sweep() {
	var deleted int64
	var err error
	if c.cfg.RetentionDays > 0 {
		deleted, err = c.archive.DeleteOlderThan(c.cfg.RetentionDays)
	}

	c.mu.Lock()
	c.stats.TotalCleanups++
	c.stats.LastCleanup = time.Now()
	if err == nil {
		c.stats.TotalDeleted += deleted
		c.stats.LastDeleted = deleted
	}
	c.mu.Unlock()

	switch {
	case err != nil:
		c.logger.Error().Err(err).Msg("Archive retention sweep failed")
	case deleted > 0:
		c.logger.Info().
			Int64("deleted", deleted).
			Int("retention_days", c.cfg.RetentionDays).
			Msg("Archive retention sweep deleted expired samples")
	default:
		c.logger.Debug().Msg("Archive retention sweep found nothing to delete")
	}
}

// RunNow performs one sweep synchronously.
func (c *RetentionCleaner) RunNow() {
	c.sweep()
}

// Stats returns a copy of the current counters.
func (c *RetentionCleaner) Stats() RetentionCleanerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Stop halts the sweep loop. Safe to call more than once.
func (c *RetentionCleaner) Stop() {
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()
		c.logger.Info().Msg("Archive retention cleaner stopped")
	})
}
