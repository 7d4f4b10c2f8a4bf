package trackfile

import (
	"bytes"
	"testing"
	"time"

	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/stretchr/testify/require"
)

func testTrack() []sample.Sample {
	t0 := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	return []sample.Sample{
		{Time: t0, Latitude: -34.1, Longitude: 18.4, Depth: 5, Strength: 80},
		{Time: t0.Add(1500 * time.Millisecond), Latitude: -34.1005, Longitude: 18.4005, Depth: 7.25, Strength: 75},
		{Latitude: -34.101, Longitude: 18.401, Depth: 9.5, Strength: -3},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testTrack()))
	expect := "time,latitude,longitude,depth,strength\n" +
		"2024-03-01T12:00:00Z,-34.1,18.4,5,80\n" +
		"2024-03-01T12:00:01.5Z,-34.1005,18.4005,7.25,75\n" +
		",-34.101,18.401,9.5,-3\n"
	require.Equal(t, expect, buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, "time,latitude,longitude,depth,strength\n", buf.String())
}

func TestRenderDepthChart(t *testing.T) {
	img, err := RenderDepthChart(testTrack(), 200, 100)
	require.NoError(t, err)
	require.Equal(t, 200, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())

	// single sample is fine too
	_, err = RenderDepthChart(testTrack()[:1], 50, 50)
	require.NoError(t, err)

	_, err = RenderDepthChart(nil, 200, 100)
	require.ErrorIs(t, err, ErrNoSamples)
	_, err = RenderDepthChart(testTrack(), 1, 100)
	require.Error(t, err)
}

func TestSpatialIndex(t *testing.T) {
	track := testTrack()
	idx := NewSpatialIndex(track)
	require.Equal(t, 3, idx.Len())

	s, ok := idx.Nearest(-34.1004, 18.4004, 0.01)
	require.True(t, ok)
	require.Equal(t, track[1], s)

	s, ok = idx.Nearest(-34.2, 18.2, 0.5)
	require.True(t, ok)
	require.Equal(t, track[0], s)

	_, ok = idx.Nearest(-30, 18.4, 0.01)
	require.False(t, ok)

	_, ok = NewSpatialIndex(nil).Nearest(0, 0, 10)
	require.False(t, ok)
}
