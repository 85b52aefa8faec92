package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/FahmyAlmaliki/CheeSense/internal/models"
)

// testSample builds a sample with a known timestamp
func testSample(sensorID string, ts time.Time) *models.Sample {
	return &models.Sample{SensorID: sensorID, Timestamp: ts, F6: 650}
}

func TestFallbackStore_AddAndLatest(t *testing.T) {
	fs := NewFallbackStore(10)

	if fs.Latest() != nil {
		t.Error("Latest on empty store should be nil")
	}

	now := time.Now().UTC()
	fs.Add(testSample("s1", now.Add(-time.Minute)))
	fs.Add(testSample("s2", now))

	latest := fs.Latest()
	if latest == nil || latest.SensorID != "s2" {
		t.Fatalf("Latest = %v, want sample from s2", latest)
	}

	// Mutating the returned copy must not affect stored data
	latest.F6 = 0
	if fs.Latest().F6 != 650 {
		t.Error("Latest should return a copy")
	}
}

func TestFallbackStore_Eviction(t *testing.T) {
	const capacity = 10
	fs := NewFallbackStore(capacity)

	now := time.Now().UTC()
	for i := 0; i < capacity+5; i++ {
		fs.Add(testSample(fmt.Sprintf("s%d", i), now.Add(time.Duration(i)*time.Second)))
	}

	if fs.Size() != capacity {
		t.Errorf("Size = %d, want %d", fs.Size(), capacity)
	}
	if fs.TotalAdded() != capacity+5 {
		t.Errorf("TotalAdded = %d, want %d", fs.TotalAdded(), capacity+5)
	}

	// The oldest five were evicted: the window starts at s5
	got := fs.Scan(now.Add(-time.Hour), now.Add(time.Hour), 0, "")
	if len(got) != capacity {
		t.Fatalf("Scan returned %d samples, want %d", len(got), capacity)
	}
	if got[0].SensorID != "s5" {
		t.Errorf("oldest surviving sample = %s, want s5", got[0].SensorID)
	}
	if got[len(got)-1].SensorID != "s14" {
		t.Errorf("newest sample = %s, want s14", got[len(got)-1].SensorID)
	}
}

func TestFallbackStore_Scan(t *testing.T) {
	fs := NewFallbackStore(100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		id := "cheesense_01"
		if i%2 == 1 {
			id = "cheesense_02"
		}
		fs.Add(testSample(id, base.Add(time.Duration(i)*time.Minute)))
	}

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		limit    int
		sensorID string
		want     int
	}{
		{
			name:  "full window",
			start: base, end: base.Add(time.Hour),
			want: 10,
		},
		{
			name:  "bounds are inclusive",
			start: base.Add(2 * time.Minute), end: base.Add(4 * time.Minute),
			want: 3,
		},
		{
			name:  "limit keeps the last matches",
			start: base, end: base.Add(time.Hour), limit: 3,
			want: 3,
		},
		{
			name:  "sensor filter",
			start: base, end: base.Add(time.Hour), sensorID: "cheesense_02",
			want: 5,
		},
		{
			name:  "window before all data",
			start: base.Add(-2 * time.Hour), end: base.Add(-time.Hour),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fs.Scan(tt.start, tt.end, tt.limit, tt.sensorID)
			if len(got) != tt.want {
				t.Errorf("Scan returned %d samples, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp.Before(got[i-1].Timestamp) {
					t.Error("Scan results not in insertion order")
				}
			}
		})
	}
}

func TestFallbackStore_ScanLimitKeepsNewest(t *testing.T) {
	fs := NewFallbackStore(100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		fs.Add(testSample(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	got := fs.Scan(base, base.Add(time.Hour), 3, "")
	if len(got) != 3 {
		t.Fatalf("Scan returned %d samples, want 3", len(got))
	}
	if got[0].SensorID != "s7" || got[2].SensorID != "s9" {
		t.Errorf("limit should keep the last matches, got %s..%s", got[0].SensorID, got[2].SensorID)
	}
}

func TestFallbackStore_ConcurrentAddsAtCapacity(t *testing.T) {
	const capacity = 1000
	fs := NewFallbackStore(capacity)

	now := time.Now().UTC()
	for i := 0; i < capacity; i++ {
		fs.Add(testSample("seed", now))
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fs.Add(testSample(fmt.Sprintf("concurrent-%d", n), time.Now().UTC()))
		}(i)
	}
	wg.Wait()

	if fs.Size() != capacity {
		t.Errorf("Size = %d, want %d after concurrent adds at capacity", fs.Size(), capacity)
	}
	if fs.TotalAdded() != capacity+50 {
		t.Errorf("TotalAdded = %d, want %d", fs.TotalAdded(), capacity+50)
	}
}

func TestFallbackStore_Clear(t *testing.T) {
	fs := NewFallbackStore(10)
	fs.Add(testSample("s1", time.Now()))

	fs.Clear()

	if fs.Size() != 0 {
		t.Errorf("Size = %d after Clear, want 0", fs.Size())
	}
	if fs.Latest() != nil {
		t.Error("Latest should be nil after Clear")
	}
}
