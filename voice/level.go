package voice

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// SilenceFloor is the level reported for digital silence
const SilenceFloor = -100.0

// RMS returns the root mean square of normalized samples in [-1, 1]
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PCM16RMS computes the RMS of little-endian signed 16-bit PCM, normalized to [0, 1].
// A trailing odd byte is ignored.
func PCM16RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// ToDBFS converts an RMS value to decibels relative to full scale
func ToDBFS(rms float64) float64 {
	if rms <= 0 || math.IsNaN(rms) {
		return SilenceFloor
	}
	db := 20 * math.Log10(rms)
	if db < SilenceFloor {
		return SilenceFloor
	}
	return db
}

// Meter holds the most recent level reported by the client.
// It is written by the socket reader and read by the sampling loop.
type Meter struct {
	bits atomic.Uint64
}

func NewMeter() *Meter {
	m := &Meter{}
	m.Set(SilenceFloor)
	return m
}

func (m *Meter) Set(db float64) {
	m.bits.Store(math.Float64bits(db))
}

func (m *Meter) Level() float64 {
	return math.Float64frombits(m.bits.Load())
}
