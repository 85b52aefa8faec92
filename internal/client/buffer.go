package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// SampleBuffer is a thread-safe circular buffer holding samples the poster
// has not yet delivered. When full, the oldest sample is dropped so the
// most recent readings survive a long server outage.
type SampleBuffer struct {
	samples  []*models.Sample
	capacity int
	mutex    sync.RWMutex
	stats    BufferStats
}

// BufferStats tracks buffer usage statistics
type BufferStats struct {
	TotalPushed   int64
	TotalDropped  int64
	HighWaterMark int
	LastPushTime  time.Time
	LastDropTime  time.Time
}

// NewSampleBuffer creates a new sample buffer with given capacity
func NewSampleBuffer(capacity int) *SampleBuffer {
	return &SampleBuffer{
		samples:  make([]*models.Sample, 0, capacity),
		capacity: capacity,
	}
}

// Push adds a sample to the buffer, dropping the oldest when full
func (sb *SampleBuffer) Push(sample *models.Sample) {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()

	if len(sb.samples) >= sb.capacity {
		sb.samples = sb.samples[1:]
		sb.stats.TotalDropped++
		sb.stats.LastDropTime = time.Now()
	}
	sb.samples = append(sb.samples, sample)
	sb.stats.TotalPushed++
	sb.stats.LastPushTime = time.Now()

	if len(sb.samples) > sb.stats.HighWaterMark {
		sb.stats.HighWaterMark = len(sb.samples)
	}
}

// Peek returns up to n samples from the front without removing them
func (sb *SampleBuffer) Peek(n int) []*models.Sample {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()

	count := min(n, len(sb.samples))
	if count == 0 {
		return nil
	}

	result := make([]*models.Sample, count)
	copy(result, sb.samples[:count])
	return result
}

// Discard removes up to n samples from the front, returning how many were removed
func (sb *SampleBuffer) Discard(n int) int {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()

	count := min(n, len(sb.samples))
	sb.samples = sb.samples[count:]
	return count
}

// Size returns the current number of samples in the buffer
func (sb *SampleBuffer) Size() int {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()
	return len(sb.samples)
}

// IsEmpty returns true if the buffer has no samples
func (sb *SampleBuffer) IsEmpty() bool {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()
	return len(sb.samples) == 0
}

// Capacity returns the maximum capacity of the buffer
func (sb *SampleBuffer) Capacity() int {
	// No lock needed, capacity doesn't change
	return sb.capacity
}

// Stats returns a copy of current buffer statistics
func (sb *SampleBuffer) Stats() BufferStats {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()
	return sb.stats
}

// String returns a human-readable representation of buffer state
func (sb *SampleBuffer) String() string {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()

	return fmt.Sprintf("Buffer[%d/%d, dropped: %d]",
		len(sb.samples),
		sb.capacity,
		sb.stats.TotalDropped,
	)
}
