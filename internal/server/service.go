package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// History query limits. The clamp applies regardless of what the caller asks for.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Query result sources. A response is served entirely from one source,
// durable and fallback data are never merged.
const (
	SourceInflux = "influxdb"
	SourceMemory = "memory"
	SourceNone   = "none"
)

// Durable store status values reported by the status endpoint
const (
	InfluxConnected     = "connected"
	InfluxError         = "error"
	InfluxNotConfigured = "not_configured"
)

// Service is the ingestion and query façade over the durable store and the
// in-memory fallback. The durable store is advisory: every failure there
// degrades to fallback behavior instead of failing the request.
type Service struct {
	fallback *FallbackStore
	series   SeriesStore // nil when the durable store is not configured
	archiver SampleArchiver
	logger   zerolog.Logger

	demoDefaultCount int
	demoMaxCount     int
}

// NewService creates the service. series may be nil when no durable store
// credentials were configured.
func NewService(fallback *FallbackStore, series SeriesStore, logger zerolog.Logger) *Service {
	return &Service{
		fallback:         fallback,
		series:           series,
		logger:           logger,
		demoDefaultCount: 50,
		demoMaxCount:     200,
	}
}

// SetArchiver attaches the optional local archive sink
func (svc *Service) SetArchiver(archiver SampleArchiver) {
	svc.archiver = archiver
}

// SetDemoBounds overrides the demo generator's default and maximum counts
func (svc *Service) SetDemoBounds(defaultCount, maxCount int) {
	if defaultCount > 0 {
		svc.demoDefaultCount = defaultCount
	}
	if maxCount > 0 {
		svc.demoMaxCount = maxCount
	}
}

// Record normalizes a raw payload and persists it: best-effort to the
// durable store, unconditionally to the fallback store. The returned sample
// carries the server-assigned timestamp. Validation failure is the only
// error a caller sees; a durable store outage silently downgrades the
// record to fallback-only persistence.
func (svc *Service) Record(ctx context.Context, raw map[string]any) (*models.Sample, error) {
	sample, err := models.ParseSample(raw)
	if err != nil {
		return nil, err
	}

	if svc.series != nil {
		if err := svc.series.Write(ctx, sample); err != nil {
			svc.logger.Warn().
				Err(err).
				Str("sensor_id", sample.SensorID).
				Msg("Durable write failed, sample kept in memory only")
		}
	}

	svc.fallback.Add(sample)

	if svc.archiver != nil {
		svc.archiver.Enqueue(sample)
	}

	svc.logger.Info().
		Str("sensor_id", sample.SensorID).
		Time("timestamp", sample.Timestamp).
		Msg("Sample recorded")

	return sample, nil
}

// Latest returns the most recent sample and the source that served it.
// The durable store is tried first; on error or no data the fallback store
// answers. A nil sample with SourceNone means no data anywhere.
func (svc *Service) Latest(ctx context.Context) (*models.Sample, string) {
	if svc.series != nil {
		sample, err := svc.series.QueryLatest(ctx)
		if err != nil {
			svc.logger.Warn().Err(err).Msg("Durable latest query degraded to fallback")
		} else if sample != nil {
			return sample, SourceInflux
		}
	}

	if sample := svc.fallback.Latest(); sample != nil {
		return sample, SourceMemory
	}
	return nil, SourceNone
}

// HistoryQuery describes a range query. Zero Start/End select the default
// window (last 24 hours ending now); Limit is clamped to MaxHistoryLimit.
type HistoryQuery struct {
	Start    time.Time
	End      time.Time
	Limit    int
	SensorID string
}

// normalize applies the default window and limit clamp
func (q HistoryQuery) normalize() HistoryQuery {
	if q.End.IsZero() {
		q.End = time.Now().UTC()
	}
	if q.Start.IsZero() {
		q.Start = q.End.Add(-24 * time.Hour)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	return q
}

// History answers a range query from a single source: the durable store
// when it yields rows, otherwise a scan of the fallback store. Returns the
// samples, the normalized query, and the source that served them.
func (svc *Service) History(ctx context.Context, query HistoryQuery) ([]*models.Sample, HistoryQuery, string) {
	query = query.normalize()

	if svc.series != nil {
		samples, err := svc.series.QueryRange(ctx, query.Start, query.End, query.Limit, query.SensorID)
		if err != nil {
			svc.logger.Warn().Err(err).Msg("Durable range query degraded to fallback")
		} else if len(samples) > 0 {
			return samples, query, SourceInflux
		}
	}

	samples := svc.fallback.Scan(query.Start, query.End, query.Limit, query.SensorID)
	source := SourceMemory
	if len(samples) == 0 {
		source = SourceNone
	}
	return samples, query, source
}

// StatusReport aggregates connectivity and record counts for health reporting
type StatusReport struct {
	Server       string     `json:"server"`
	Influx       string     `json:"influxdb"`
	RecordCount  int        `json:"recordCount"`
	LastDataTime *time.Time `json:"lastDataTime,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Status probes durable store connectivity at request time (never cached)
// and reports fallback store counts
func (svc *Service) Status(ctx context.Context) StatusReport {
	report := StatusReport{
		Server:      "online",
		Influx:      InfluxNotConfigured,
		RecordCount: svc.fallback.Size(),
		Timestamp:   time.Now().UTC(),
	}

	if svc.series != nil {
		if err := svc.series.Ping(ctx); err != nil {
			svc.logger.Warn().Err(err).Msg("Durable store probe failed")
			report.Influx = InfluxError
		} else {
			report.Influx = InfluxConnected
		}
	}

	if latest := svc.fallback.Latest(); latest != nil {
		ts := latest.Timestamp
		report.LastDataTime = &ts
	}

	return report
}

// ArchiverStats exposes archive writer statistics when an archiver is attached
func (svc *Service) ArchiverStats() (any, bool) {
	if svc.archiver == nil {
		return nil, false
	}
	return svc.archiver.Stats(), true
}

// GenerateDemo inserts count synthetic samples at one-minute intervals
// ending now, straight into the fallback store. count defaults and is
// capped per the configured demo bounds. Returns how many were generated
// and the resulting fallback store size.
func (svc *Service) GenerateDemo(count int) (generated, totalRecords int) {
	if count <= 0 {
		count = svc.demoDefaultCount
	}
	if count > svc.demoMaxCount {
		count = svc.demoMaxCount
	}

	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		ts := now.Add(-time.Duration(count-i) * time.Minute)
		svc.fallback.Add(models.RandomSample("cheesense_demo", ts))
	}

	svc.logger.Info().Int("count", count).Msg("Demo data generated")
	return count, svc.fallback.Size()
}
