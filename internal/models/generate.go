package models

import (
	"math/rand"
	"time"
)

// Per-channel base and spread for synthetic spectra. The yellow band (f6)
// dominates, which is what a real cheese surface reflects.
var syntheticRanges = [10]struct{ base, span float64 }{
	{300, 200}, // f1
	{350, 200}, // f2
	{400, 200}, // f3
	{450, 200}, // f4
	{500, 250}, // f5
	{550, 300}, // f6
	{480, 250}, // f7
	{400, 200}, // f8
	{600, 300}, // clear
	{350, 200}, // nir
}

// RandomSample produces a synthetic spectral reading for demo mode and the
// device simulator.
func RandomSample(sensorID string, ts time.Time) *Sample {
	var v [10]float64
	for i, r := range syntheticRanges {
		v[i] = r.base + rand.Float64()*r.span
	}
	return &Sample{
		SensorID:  sensorID,
		Timestamp: ts,
		F1:        v[0],
		F2:        v[1],
		F3:        v[2],
		F4:        v[3],
		F5:        v[4],
		F6:        v[5],
		F7:        v[6],
		F8:        v[7],
		Clear:     v[8],
		Nir:       v[9],
	}
}
