// Package stats summarizes a run of samples
package stats

import (
	"math"
	"time"

	"github.com/cyclopcam/sonarlog/pkg/sample"
)

type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Returns (mean, variance) of the values. Both are zero for an empty slice.
func MeanVar[T Number](values []T) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / float64(len(values))
	sumSq := 0.0
	for _, v := range values {
		d := float64(v) - mean
		sumSq += d * d
	}
	return mean, sumSq / float64(len(values))
}

// Summary of a contiguous run of samples
type Summary struct {
	Count        int       `json:"count"`
	MinDepth     float32   `json:"minDepth"`
	MaxDepth     float32   `json:"maxDepth"`
	MeanDepth    float64   `json:"meanDepth"`
	StdDepth     float64   `json:"stdDepth"`
	MeanStrength float64   `json:"meanStrength"`
	FirstTime    time.Time `json:"firstTime,omitzero"`
	LastTime     time.Time `json:"lastTime,omitzero"`
}

// Summarize computes depth and strength statistics over the samples.
// Times come from the first and last samples, and are zero for untimed samples.
func Summarize(samples []sample.Sample) Summary {
	s := Summary{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}
	depths := make([]float32, len(samples))
	strengths := make([]int32, len(samples))
	s.MinDepth = samples[0].Depth
	s.MaxDepth = samples[0].Depth
	for i := range samples {
		depths[i] = samples[i].Depth
		strengths[i] = samples[i].Strength
		s.MinDepth = min(s.MinDepth, samples[i].Depth)
		s.MaxDepth = max(s.MaxDepth, samples[i].Depth)
	}
	var variance float64
	s.MeanDepth, variance = MeanVar(depths)
	s.StdDepth = math.Sqrt(variance)
	s.MeanStrength, _ = MeanVar(strengths)
	s.FirstTime = samples[0].Time
	s.LastTime = samples[len(samples)-1].Time
	return s
}
