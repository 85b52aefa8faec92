package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/config"
	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// InfluxStore adapts the InfluxDB v2 write and Flux query protocols to the
// sample model. Each sample becomes one point tagged by sensor_id with the
// ten channels as float fields.
//
// All calls carry a bounded timeout so a hung store cannot stall ingestion.
type InfluxStore struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewInfluxStore creates a new durable store adapter. The client is lazy:
// no connection is attempted until the first write or query.
func NewInfluxStore(cfg config.InfluxSettings, logger zerolog.Logger) *InfluxStore {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	logger.Info().
		Str("url", cfg.URL).
		Str("org", cfg.Org).
		Str("bucket", cfg.Bucket).
		Msg("InfluxDB client initialized")

	return &InfluxStore{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Close releases the underlying HTTP client
func (is *InfluxStore) Close() {
	is.client.Close()
}

// Write persists a single sample and flushes it, so the caller observes
// durability or failure synchronously
func (is *InfluxStore) Write(ctx context.Context, sample *models.Sample) error {
	ctx, cancel := context.WithTimeout(ctx, is.timeout)
	defer cancel()

	point := influxdb2.NewPoint(
		is.measurement,
		map[string]string{"sensor_id": sample.SensorID},
		toFields(sample),
		sample.Timestamp,
	)

	if err := is.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influxdb write failed: %w", err)
	}
	if err := is.writeAPI.Flush(ctx); err != nil {
		return fmt.Errorf("influxdb flush failed: %w", err)
	}
	return nil
}

// QueryLatest returns the most recent sample from the last hour, or nil
// when the store holds no rows in that window
func (is *InfluxStore) QueryLatest(ctx context.Context) (*models.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, is.timeout)
	defer cancel()

	flux := fmt.Sprintf(`from(bucket: %q)
		|> range(start: -1h)
		|> filter(fn: (r) => r._measurement == %q)
		|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		|> sort(columns: ["_time"], desc: true)
		|> limit(n: 1)`, is.bucket, is.measurement)

	samples, err := is.runQuery(ctx, flux)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return samples[0], nil
}

// QueryRange returns up to limit samples in [start, end], ascending by time.
// An empty sensorID matches all sensors.
func (is *InfluxStore) QueryRange(ctx context.Context, start, end time.Time, limit int, sensorID string) ([]*models.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, is.timeout)
	defer cancel()

	flux := fmt.Sprintf(`from(bucket: %q)
		|> range(start: %s, stop: %s)
		|> filter(fn: (r) => r._measurement == %q)`,
		is.bucket,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
		is.measurement)
	if sensorID != "" {
		flux += fmt.Sprintf("\n\t\t|> filter(fn: (r) => r.sensor_id == %q)", sensorID)
	}
	flux += fmt.Sprintf(`
		|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		|> sort(columns: ["_time"], desc: false)
		|> limit(n: %d)`, limit)

	return is.runQuery(ctx, flux)
}

// Ping issues a tiny bounded query to classify connectivity for the status
// endpoint. It never touches the read or write paths.
func (is *InfluxStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, is.timeout)
	defer cancel()

	flux := fmt.Sprintf(`from(bucket: %q) |> range(start: -1m) |> limit(n: 1)`, is.bucket)

	result, err := is.queryAPI.Query(ctx, flux)
	if err != nil {
		return fmt.Errorf("influxdb probe failed: %w", err)
	}
	for result.Next() {
	}
	if result.Err() != nil {
		return fmt.Errorf("influxdb probe failed: %w", result.Err())
	}
	return nil
}

// runQuery executes a Flux query and converts the pivoted rows to samples
func (is *InfluxStore) runQuery(ctx context.Context, flux string) ([]*models.Sample, error) {
	result, err := is.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", err)
	}

	var samples []*models.Sample
	for result.Next() {
		samples = append(samples, sampleFromRecord(result.Record().Values(), result.Record().Time()))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", result.Err())
	}
	return samples, nil
}

// toFields maps the ten channels to InfluxDB float fields
func toFields(sample *models.Sample) map[string]interface{} {
	fields := make(map[string]interface{}, len(models.ChannelNames))
	for name, value := range sample.Channels() {
		fields[name] = value
	}
	return fields
}

// sampleFromRecord converts one pivoted Flux row back into a Sample.
// Fields missing from the row read as 0, matching ingestion normalization.
func sampleFromRecord(values map[string]interface{}, ts time.Time) *models.Sample {
	sensorID, _ := values["sensor_id"].(string)
	return &models.Sample{
		SensorID:  sensorID,
		Timestamp: ts,
		F1:        fieldFloat(values, "f1"),
		F2:        fieldFloat(values, "f2"),
		F3:        fieldFloat(values, "f3"),
		F4:        fieldFloat(values, "f4"),
		F5:        fieldFloat(values, "f5"),
		F6:        fieldFloat(values, "f6"),
		F7:        fieldFloat(values, "f7"),
		F8:        fieldFloat(values, "f8"),
		Clear:     fieldFloat(values, "clear"),
		Nir:       fieldFloat(values, "nir"),
	}
}

// fieldFloat reads one numeric field from a Flux row
func fieldFloat(values map[string]interface{}, key string) float64 {
	switch v := values[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}
