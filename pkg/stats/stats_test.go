package stats

import (
	"testing"
	"time"

	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/stretchr/testify/require"
)

func TestMeanVar(t *testing.T) {
	mean, variance := MeanVar([]int32{2, 4, 4, 4, 5, 5, 7, 9})
	require.Equal(t, 5.0, mean)
	require.Equal(t, 4.0, variance)

	mean, variance = MeanVar([]float64{})
	require.Equal(t, 0.0, mean)
	require.Equal(t, 0.0, variance)
}

func TestSummarize(t *testing.T) {
	require.Equal(t, Summary{}, Summarize(nil))

	t0 := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	samples := []sample.Sample{
		{Time: t0, Depth: 2, Strength: 80},
		{Time: t0.Add(time.Second), Depth: 6, Strength: 60},
		{Time: t0.Add(2 * time.Second), Depth: 4, Strength: 70},
	}
	s := Summarize(samples)
	require.Equal(t, 3, s.Count)
	require.Equal(t, float32(2), s.MinDepth)
	require.Equal(t, float32(6), s.MaxDepth)
	require.Equal(t, 4.0, s.MeanDepth)
	require.InDelta(t, 1.63299, s.StdDepth, 1e-4)
	require.Equal(t, 70.0, s.MeanStrength)
	require.Equal(t, t0, s.FirstTime)
	require.Equal(t, t0.Add(2*time.Second), s.LastTime)
}
