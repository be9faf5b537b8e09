// Package quality adapts the star-field tier to the measured frame rate.
package quality

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DefaultHistorySize is the number of frames in the trailing FPS window.
const DefaultHistorySize = 60

// History is a fixed-capacity ring of recent FPS samples.
// It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	samples []float64
	writeAt int
	count   int
}

// NewHistory creates a ring holding up to size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{samples: make([]float64, size)}
}

// Push records a sample, overwriting the oldest when full.
func (h *History) Push(fps float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[h.writeAt] = fps
	h.writeAt = (h.writeAt + 1) % len(h.samples)
	if h.count < len(h.samples) {
		h.count++
	}
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Cap returns the ring capacity.
func (h *History) Cap() int {
	return len(h.samples)
}

// Mean returns the mean of the stored samples and false when empty.
func (h *History) Mean() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0, false
	}
	return stat.Mean(h.orderedLocked(), nil), true
}

// Values returns the samples oldest first.
func (h *History) Values() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.orderedLocked()
}

// Reset discards all samples.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeAt = 0
	h.count = 0
}

func (h *History) orderedLocked() []float64 {
	out := make([]float64, h.count)
	if h.count < len(h.samples) {
		copy(out, h.samples[:h.count])
		return out
	}
	n := copy(out, h.samples[h.writeAt:])
	copy(out[n:], h.samples[:h.writeAt])
	return out
}
