package server

import (
	"sync"
	"time"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// FallbackStore is a thread-safe, capacity-bounded ring buffer of samples.
// It always holds the most recent N samples in insertion order and backs
// every query the durable store cannot answer.
type FallbackStore struct {
	samples    []*models.Sample
	capacity   int
	mutex      sync.RWMutex
	totalAdded int64
}

// NewFallbackStore creates an empty fallback store with the given capacity
func NewFallbackStore(capacity int) *FallbackStore {
	return &FallbackStore{
		samples:  make([]*models.Sample, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, evicting the oldest entry when at capacity
func (fs *FallbackStore) Add(sample *models.Sample) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	if len(fs.samples) >= fs.capacity {
		fs.samples = fs.samples[1:]
	}
	fs.samples = append(fs.samples, sample)
	fs.totalAdded++
}

// Latest returns a copy of the most recently inserted sample, or nil
func (fs *FallbackStore) Latest() *models.Sample {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	if len(fs.samples) == 0 {
		return nil
	}
	return fs.samples[len(fs.samples)-1].Copy()
}

// Scan returns the last `limit` samples whose timestamps fall within
// [start, end] inclusive, optionally filtered by sensor ID, in insertion
// order. Copies are returned, never internal pointers.
func (fs *FallbackStore) Scan(start, end time.Time, limit int, sensorID string) []*models.Sample {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	matches := make([]*models.Sample, 0)
	for _, s := range fs.samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		if sensorID != "" && s.SensorID != sensorID {
			continue
		}
		matches = append(matches, s)
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	result := make([]*models.Sample, len(matches))
	for i, s := range matches {
		result[i] = s.Copy()
	}
	return result
}

// Size returns the current number of samples held
func (fs *FallbackStore) Size() int {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()
	return len(fs.samples)
}

// Capacity returns the maximum number of samples held
func (fs *FallbackStore) Capacity() int {
	return fs.capacity
}

// TotalAdded returns the number of samples ever inserted, including evicted ones
func (fs *FallbackStore) TotalAdded() int64 {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()
	return fs.totalAdded
}

// Clear removes all samples from the store
func (fs *FallbackStore) Clear() {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.samples = make([]*models.Sample, 0, fs.capacity)
	fs.totalAdded = 0
}
