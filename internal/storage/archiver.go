package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// ArchiverConfig tunes the async archive writer.
type ArchiverConfig struct {
	BatchSize   int
	FlushPeriod time.Duration
	ChannelSize int
}

// DefaultArchiverConfig returns the defaults used when fields are left zero.
func DefaultArchiverConfig() ArchiverConfig {
	return ArchiverConfig{
		BatchSize:   100,
		FlushPeriod: 5 * time.Second,
		ChannelSize: 1000,
	}
}

func (c ArchiverConfig) withDefaults() ArchiverConfig {
	def := DefaultArchiverConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushPeriod <= 0 {
		c.FlushPeriod = def.FlushPeriod
	}
	if c.ChannelSize <= 0 {
		c.ChannelSize = def.ChannelSize
	}
	return c
}

// ArchiverStats is a snapshot of the writer's counters.
type ArchiverStats struct {
	TotalWritten  int64     `json:"total_written"`
	TotalBatches  int64     `json:"total_batches"`
	TotalDropped  int64     `json:"total_dropped"`
	TotalErrors   int64     `json:"total_errors"`
	LastWriteTime time.Time `json:"last_write_time,omitempty"`
	QueueLength   int       `json:"queue_length"`
}

// Archiver moves accepted samples into the local archive off the request
// path. Enqueue never blocks; samples are batched and written by a single
// background goroutine, so inserts stay serialized against SQLite.
type Archiver struct {
	archive *Archive
	logger  zerolog.Logger
	cfg     ArchiverConfig

	queue chan *models.Sample
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	written   atomic.Int64
	batches   atomic.Int64
	dropped   atomic.Int64
	errors    atomic.Int64
	lastWrite atomic.Int64 // unix nanos, 0 until the first flush
}

// NewArchiver starts the background writer immediately.
func NewArchiver(archive *Archive, cfg ArchiverConfig, logger zerolog.Logger) *Archiver {
	cfg = cfg.withDefaults()

	a := &Archiver{
		archive: archive,
		logger:  logger,
		cfg:     cfg,
		queue:   make(chan *models.Sample, cfg.ChannelSize),
		done:    make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()

	logger.Info().
		Int("batch_size", cfg.BatchSize).
		Dur("flush_period", cfg.FlushPeriod).
		Int("queue_size", cfg.ChannelSize).
		Msg("Archive writer started")

	return a
}

// Enqueue hands a sample to the writer. Returns false when the queue is
// full and the sample was dropped.
func (a *Archiver) Enqueue(sample *models.Sample) bool {
	select {
	case a.queue <- sample:
		return true
	default:
		a.dropped.Add(1)
		a.logger.Warn().Str("sensor_id", sample.SensorID).Msg("Archive queue full, sample dropped")
		return false
	}
}

func (a *Archiver) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.FlushPeriod)
	defer ticker.Stop()

	pending := make([]*models.Sample, 0, a.cfg.BatchSize)

	for {
		select {
		case sample := <-a.queue:
			pending = append(pending, sample)
			if len(pending) >= a.cfg.BatchSize {
				pending = a.flush(pending)
			}
		case <-ticker.C:
			pending = a.flush(pending)
		case <-a.done:
			pending = append(pending, a.drainQueue()...)
			a.flush(pending)
			a.logger.Info().Msg("Archive writer stopped")
			return
		}
	}
}

// drainQueue empties whatever is buffered in the channel at shutdown.
func (a *Archiver) drainQueue() []*models.Sample {
	var rest []*models.Sample
	for {
		select {
		case sample := <-a.queue:
			rest = append(rest, sample)
		default:
			return rest
		}
	}
}

// flush writes pending samples and returns an empty slice for reuse.
func (a *Archiver) flush(pending []*models.Sample) []*models.Sample {
	if len(pending) == 0 {
		return pending
	}

	if err := a.archive.InsertBatch(pending); err != nil {
		a.errors.Add(1)
		a.logger.Error().Err(err).Int("count", len(pending)).Msg("Archive batch insert failed")
	} else {
		a.written.Add(int64(len(pending)))
		a.batches.Add(1)
		a.lastWrite.Store(time.Now().UnixNano())
		a.logger.Debug().Int("count", len(pending)).Msg("Archived sample batch")
	}

	return pending[:0]
}

// Stop flushes everything still queued and halts the writer. Safe to call
// more than once.
func (a *Archiver) Stop() {
	a.once.Do(func() {
		close(a.done)
		a.wg.Wait()
	})
}

// Stats returns a snapshot of the writer's counters.
func (a *Archiver) Stats() ArchiverStats {
	stats := ArchiverStats{
		TotalWritten: a.written.Load(),
		TotalBatches: a.batches.Load(),
		TotalDropped: a.dropped.Load(),
		TotalErrors:  a.errors.Load(),
		QueueLength:  len(a.queue),
	}
	if ns := a.lastWrite.Load(); ns != 0 {
		stats.LastWriteTime = time.Unix(0, ns)
	}
	return stats
}
