package vision

import (
	"sync"
	"time"
)

const fpsWindowSize = 20

// FPSEstimator keeps a bounded window of instantaneous frame rates and
// reports their integer mean as the smoothed rate. It is safe for
// concurrent use: the frame loop records while other goroutines read.
type FPSEstimator struct {
	mu      sync.Mutex
	samples []int
	size    int
}

// NewFPSEstimator returns an estimator with the standard 20-sample window.
func NewFPSEstimator() *FPSEstimator {
	return &FPSEstimator{size: fpsWindowSize}
}

// Record adds the instantaneous rate for one frame of the given duration,
// evicting the oldest sample once the window is full. Non-positive
// durations have no defined rate and are skipped.
func (e *FPSEstimator) Record(d time.Duration) {
	if d <= 0 {
		return
	}
	rate := int(1.0 / d.Seconds())
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = append(e.samples, rate)
	if len(e.samples) > e.size {
		e.samples = e.samples[1:]
	}
}

// Value returns the integer mean of the current window, or 0 before the
// first recorded sample.
func (e *FPSEstimator) Value() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range e.samples {
		sum += s
	}
	return sum / len(e.samples)
}

// Len reports how many samples the window currently holds.
func (e *FPSEstimator) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}
