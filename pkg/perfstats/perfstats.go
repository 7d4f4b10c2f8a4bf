// Package perfstats accumulates timings of repeated operations
package perfstats

import (
	"sync"
	"time"
)

// TimeAccumulator records how long something took, over many runs.
// It is safe for use from multiple goroutines.
type TimeAccumulator struct {
	lock    sync.Mutex
	samples int64
	total   time.Duration
	longest time.Duration
}

// Timing is a snapshot of a TimeAccumulator
type Timing struct {
	Samples   int64   `json:"samples"`
	AverageMS float64 `json:"averageMS"`
	LongestMS float64 `json:"longestMS"`
}

func (a *TimeAccumulator) AddSample(d time.Duration) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.samples++
	a.total += d
	a.longest = max(a.longest, d)
}

// Time runs f, and records how long it took
func (a *TimeAccumulator) Time(f func() error) error {
	start := time.Now()
	err := f()
	a.AddSample(time.Since(start))
	return err
}

func (a *TimeAccumulator) Average() time.Duration {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.samples == 0 {
		return 0
	}
	return time.Duration(a.total.Nanoseconds() / a.samples)
}

func (a *TimeAccumulator) Timing() Timing {
	avg := a.Average()
	a.lock.Lock()
	defer a.lock.Unlock()
	return Timing{
		Samples:   a.samples,
		AverageMS: float64(avg) / float64(time.Millisecond),
		LongestMS: float64(a.longest) / float64(time.Millisecond),
	}
}

func (a *TimeAccumulator) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.samples = 0
	a.total = 0
	a.longest = 0
}
