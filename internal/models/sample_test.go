package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseSample_SensorID(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantID  string
		wantErr bool
	}{
		{
			name:   "string sensor id",
			raw:    map[string]any{"sensor_id": "cheesense_01"},
			wantID: "cheesense_01",
		},
		{
			name:   "numeric sensor id coerced to string",
			raw:    map[string]any{"sensor_id": float64(42)},
			wantID: "42",
		},
		{
			name:    "missing sensor id",
			raw:     map[string]any{"f1": float64(100)},
			wantErr: true,
		},
		{
			name:    "empty sensor id",
			raw:     map[string]any{"sensor_id": ""},
			wantErr: true,
		},
		{
			name:    "non-coercible sensor id",
			raw:     map[string]any{"sensor_id": true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, err := ParseSample(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingSensorID) {
					t.Fatalf("expected ErrMissingSensorID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSample failed: %v", err)
			}
			if sample.SensorID != tt.wantID {
				t.Errorf("SensorID = %q, want %q", sample.SensorID, tt.wantID)
			}
		})
	}
}

func TestParseSample_ChannelCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{name: "number", value: float64(612.5), want: 612.5},
		{name: "numeric string", value: "600", want: 600},
		{name: "non-numeric string", value: "abc", want: 0},
		{name: "absent", value: nil, want: 0},
		{name: "bool", value: true, want: 0},
		{name: "object", value: map[string]any{"v": 1.0}, want: 0},
		{name: "negative number", value: float64(-12), want: -12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"sensor_id": "s1"}
			if tt.value != nil {
				raw["f6"] = tt.value
			}

			sample, err := ParseSample(raw)
			if err != nil {
				t.Fatalf("ParseSample failed: %v", err)
			}
			if sample.F6 != tt.want {
				t.Errorf("F6 = %v, want %v", sample.F6, tt.want)
			}
			// Unset channels always normalize to zero
			if sample.F1 != 0 || sample.Clear != 0 || sample.Nir != 0 {
				t.Errorf("unset channels should be 0, got f1=%v clear=%v nir=%v", sample.F1, sample.Clear, sample.Nir)
			}
		})
	}
}

func TestParseSample_TimestampAssignedServerSide(t *testing.T) {
	before := time.Now().UTC()

	// A client-supplied timestamp must be ignored
	sample, err := ParseSample(map[string]any{
		"sensor_id": "s1",
		"timestamp": "2020-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("ParseSample failed: %v", err)
	}

	after := time.Now().UTC()
	if sample.Timestamp.Before(before) || sample.Timestamp.After(after) {
		t.Errorf("Timestamp %v not assigned at ingestion time", sample.Timestamp)
	}
}

func TestParseSample_FromJSON(t *testing.T) {
	// The exact payload a device sends
	body := `{"sensor_id":"cheesense_01","f1":400,"f2":450,"f3":"500","f4":550,"f5":600,"f6":650,"f7":700,"f8":750,"clear":800,"nir":850}`

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	sample, err := ParseSample(raw)
	if err != nil {
		t.Fatalf("ParseSample failed: %v", err)
	}

	want := map[string]float64{
		"f1": 400, "f2": 450, "f3": 500, "f4": 550, "f5": 600,
		"f6": 650, "f7": 700, "f8": 750, "clear": 800, "nir": 850,
	}
	got := sample.Channels()
	for name, value := range want {
		if got[name] != value {
			t.Errorf("channel %s = %v, want %v", name, got[name], value)
		}
	}
}

func TestSample_Copy(t *testing.T) {
	original := &Sample{SensorID: "s1", Timestamp: time.Now(), F6: 650}

	copied := original.Copy()
	copied.F6 = 1

	if original.F6 != 650 {
		t.Error("Copy should not share state with original")
	}

	var nilSample *Sample
	if nilSample.Copy() != nil {
		t.Error("Copy of nil should be nil")
	}
}

func TestRandomSample(t *testing.T) {
	ts := time.Now().UTC()
	sample := RandomSample("cheesense_demo", ts)

	if sample.SensorID != "cheesense_demo" {
		t.Errorf("SensorID = %q, want cheesense_demo", sample.SensorID)
	}
	if !sample.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", sample.Timestamp, ts)
	}
	// Every channel falls within its synthetic range
	if sample.F6 < 550 || sample.F6 > 850 {
		t.Errorf("F6 = %v, want within [550, 850]", sample.F6)
	}
	if sample.Clear < 600 || sample.Clear > 900 {
		t.Errorf("Clear = %v, want within [600, 900]", sample.Clear)
	}
}
