// Package sampler produces sonar samples, and feeds them into the sample cache
package sampler

import (
	"context"
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/sonarlog/pkg/sample"
)

// Source produces samples, one at a time.
// Next blocks until a sample is available. A finite source returns io.EOF when it runs dry.
type Source interface {
	Next(ctx context.Context) (sample.Sample, error)
}

// Simulator pretends to be a boat with a depth sounder, drifting over an undulating seabed.
// Given the same seed and start sample, it always produces the same sequence.
type Simulator struct {
	rng      *rand.Rand
	interval time.Duration
	step     time.Duration
	current  sample.Sample
	heading  float32 // radians
	phase    float32
	baseline float32 // mean depth
	n        int64
	lastWake time.Time
}

// Degrees moved per sample, roughly 1 meter
const simStepDegrees = 0.00001

// NewSimulator creates a simulator that starts at 'start'.
// If interval is non-zero, Next paces itself to produce one sample per interval.
// Timestamps advance from start.Time by the interval (or one second, if interval is zero).
// If start.Time is zero, samples are stamped with the wall clock instead.
func NewSimulator(seed int64, interval time.Duration, start sample.Sample) *Simulator {
	step := interval
	if step <= 0 {
		step = time.Second
	}
	baseline := start.Depth
	if baseline <= 0 {
		baseline = 20
	}
	rng := rand.New(rand.NewSource(seed))
	return &Simulator{
		rng:      rng,
		interval: interval,
		step:     step,
		current:  start,
		heading:  rng.Float32() * 2 * math32.Pi,
		baseline: baseline,
	}
}

func (s *Simulator) Next(ctx context.Context) (sample.Sample, error) {
	if s.interval > 0 {
		wait := time.Duration(0)
		if !s.lastWake.IsZero() {
			wait = s.interval - time.Since(s.lastWake)
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return sample.Sample{}, ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return sample.Sample{}, err
		}
		s.lastWake = time.Now()
	} else if err := ctx.Err(); err != nil {
		return sample.Sample{}, err
	}

	out := s.current
	if out.Time.IsZero() {
		out.Time = time.Now().UTC().Truncate(time.Millisecond)
	}
	s.advance()
	return out, nil
}

// Move the boat and the seabed under it
func (s *Simulator) advance() {
	s.n++
	if !s.current.Time.IsZero() {
		s.current.Time = s.current.Time.Add(s.step)
	}

	// Gentle random turns
	s.heading += (s.rng.Float32() - 0.5) * 0.2
	s.current.Latitude += float64(math32.Cos(s.heading)) * simStepDegrees
	s.current.Longitude += float64(math32.Sin(s.heading)) * simStepDegrees

	s.phase += 0.05
	noise := (s.rng.Float32() - 0.5) * 0.4
	depth := s.baseline + s.baseline*0.3*math32.Sin(s.phase) + noise
	s.current.Depth = math32.Max(depth, 0.5)

	// Deeper water gives a weaker echo
	strength := 100 - s.current.Depth*1.5 + (s.rng.Float32()-0.5)*4
	s.current.Strength = int32(math32.Round(math32.Max(strength, 0)))
}
