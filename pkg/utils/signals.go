// SPDX-License-Identifier: MIT
//
// Package utils holds synthetic signal generators and test doubles shared by
// the melspec package tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every message passed to Send. It satisfies
// transport.Transport without importing it.
type MockTransport struct {
	mu       sync.Mutex
	Messages []any
	Closed   bool
}

// Send stores the message for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, data)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Count returns the number of messages received so far.
func (m *MockTransport) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics,
// peaking just below full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateImpulse returns a unit impulse at position pos.
func GenerateImpulse(size, pos int) []float32 {
	buffer := make([]float32, size)
	if pos >= 0 && pos < size {
		buffer[pos] = 1
	}
	return buffer
}

// GenerateNoise returns deterministic white noise in [-amplitude, amplitude].
// A fixed LCG keeps test fixtures reproducible across runs.
func GenerateNoise(size int, amplitude float64, seed uint32) []float32 {
	state := seed
	buffer := make([]float32, size)
	for i := range buffer {
		state = state*1664525 + 1013904223
		buffer[i] = float32(amplitude * ((float64(state)/float64(math.MaxUint32))*2 - 1))
	}
	return buffer
}

// Silence zeroes samples in [start, end) in place and returns the buffer.
func Silence(buffer []float32, start, end int) []float32 {
	if start < 0 {
		start = 0
	}
	if end > len(buffer) {
		end = len(buffer)
	}
	for i := start; i < end; i++ {
		buffer[i] = 0
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}

// MaxAbs returns the largest absolute sample value.
func MaxAbs(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}
