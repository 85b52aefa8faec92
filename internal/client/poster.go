package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/FahmyAlmaliki/CheeSense/internal/config"
	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// Poster delivers buffered samples to the ingestion API over HTTP with
// exponential backoff between failed attempts. Buffered samples are only
// discarded once the server has acknowledged them.
type Poster struct {
	recordURL       string
	apiKey          string
	httpClient      *http.Client
	buffer          *SampleBuffer
	logger          zerolog.Logger
	retryInterval   time.Duration
	maxRetry        time.Duration
	currentInterval time.Duration
}

// NewPoster creates a new poster draining the given buffer
func NewPoster(cfg config.TargetSettings, buffer *SampleBuffer, logger zerolog.Logger) *Poster {
	return &Poster{
		recordURL:       cfg.RecordURL,
		apiKey:          cfg.APIKey,
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		buffer:          buffer,
		logger:          logger,
		retryInterval:   cfg.RetryInterval,
		maxRetry:        cfg.MaxRetryInterval,
		currentInterval: cfg.RetryInterval,
	}
}

// Run consumes samples from the channel, buffers them, and drains the
// buffer to the server. Blocks until the context is cancelled.
func (p *Poster) Run(ctx context.Context, samples <-chan *models.Sample) {
	for {
		select {
		case <-ctx.Done():
			if !p.buffer.IsEmpty() {
				p.logger.Warn().Int("pending", p.buffer.Size()).Msg("Shutting down with undelivered samples")
			}
			return
		case sample := <-samples:
			p.buffer.Push(sample)
			p.drain(ctx)
		}
	}
}

// drain posts buffered samples oldest-first until the buffer is empty or a
// post fails. On failure the sample stays buffered and the backoff grows.
func (p *Poster) drain(ctx context.Context) {
	for !p.buffer.IsEmpty() {
		batch := p.buffer.Peek(1)
		if len(batch) == 0 {
			return
		}

		if err := p.post(ctx, batch[0]); err != nil {
			p.logger.Warn().
				Err(err).
				Int("buffered", p.buffer.Size()).
				Dur("retry_in", p.currentInterval).
				Msg("Post failed, sample kept in buffer")
			p.backoff(ctx)
			return
		}

		p.buffer.Discard(1)
		p.currentInterval = p.retryInterval
	}
}

// post sends one sample to the record endpoint. The server assigns the
// timestamp, so only sensor_id and the channels go on the wire.
func (p *Poster) post(ctx context.Context, sample *models.Sample) error {
	payload := map[string]any{"sensor_id": sample.SensorID}
	for name, value := range sample.Channels() {
		payload[name] = value
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.recordURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

// backoff sleeps for the current retry interval, doubling it up to the max
func (p *Poster) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.currentInterval):
	}

	p.currentInterval *= 2
	if p.currentInterval > p.maxRetry {
		p.currentInterval = p.maxRetry
	}
}
