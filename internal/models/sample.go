package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrMissingSensorID is returned when an ingestion payload has no usable sensor_id.
var ErrMissingSensorID = errors.New("sensor_id is required")

// Sample is one normalized spectral reading from an AS7341-class sensor:
// eight narrow-band channels plus clear and near-infrared.
type Sample struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	F1        float64   `json:"f1"` // 415nm - Violet
	F2        float64   `json:"f2"` // 445nm - Blue
	F3        float64   `json:"f3"` // 480nm - Cyan
	F4        float64   `json:"f4"` // 515nm - Green
	F5        float64   `json:"f5"` // 555nm - Yellow-Green
	F6        float64   `json:"f6"` // 590nm - Yellow
	F7        float64   `json:"f7"` // 630nm - Orange
	F8        float64   `json:"f8"` // 680nm - Red
	Clear     float64   `json:"clear"`
	Nir       float64   `json:"nir"`
}

// ChannelNames lists the ten channel field names in wire order.
var ChannelNames = []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "clear", "nir"}

// ParseSample normalizes an untyped JSON payload into a Sample.
// sensor_id is the only required field; each channel is coerced to a
// float64 and defaults to 0 when absent or non-numeric, so malformed
// telemetry never blocks ingestion. The timestamp is assigned here,
// never trusted from the device.
func ParseSample(raw map[string]any) (*Sample, error) {
	id, ok := coerceSensorID(raw["sensor_id"])
	if !ok {
		return nil, ErrMissingSensorID
	}

	return &Sample{
		SensorID:  id,
		Timestamp: time.Now().UTC(),
		F1:        coerceChannel(raw["f1"]),
		F2:        coerceChannel(raw["f2"]),
		F3:        coerceChannel(raw["f3"]),
		F4:        coerceChannel(raw["f4"]),
		F5:        coerceChannel(raw["f5"]),
		F6:        coerceChannel(raw["f6"]),
		F7:        coerceChannel(raw["f7"]),
		F8:        coerceChannel(raw["f8"]),
		Clear:     coerceChannel(raw["clear"]),
		Nir:       coerceChannel(raw["nir"]),
	}, nil
}

// coerceSensorID accepts strings and JSON numbers as identifiers.
func coerceSensorID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	default:
		return "", false
	}
}

// coerceChannel converts a JSON value to a finite float64, zero on failure.
func coerceChannel(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Channels returns the ten channel values keyed by wire name.
func (s *Sample) Channels() map[string]float64 {
	return map[string]float64{
		"f1": s.F1, "f2": s.F2, "f3": s.F3, "f4": s.F4,
		"f5": s.F5, "f6": s.F6, "f7": s.F7, "f8": s.F8,
		"clear": s.Clear, "nir": s.Nir,
	}
}

// Copy returns a deep copy of the Sample
func (s *Sample) Copy() *Sample {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// get the sample as a string
func (s *Sample) String() string {
	return fmt.Sprintf("SensorID: %s, Timestamp: %s, Clear: %.1f, Nir: %.1f",
		s.SensorID,
		s.Timestamp.Format(time.RFC3339),
		s.Clear,
		s.Nir)
}
