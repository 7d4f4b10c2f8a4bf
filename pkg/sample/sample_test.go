package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWidths(t *testing.T) {
	require.Equal(t, 32, FormatTimed.Width())
	require.Equal(t, 24, FormatUntimed.Width())
	require.Panics(t, func() { Format(7).Width() })
}

func TestEncodeDecode(t *testing.T) {
	tm := time.Date(2023, time.June, 4, 5, 6, 7, 123000000, time.UTC)
	s := Sample{
		Time:      tm,
		Latitude:  -33.918861,
		Longitude: 18.4233,
		Depth:     12.75,
		Strength:  -87,
	}

	buf := make([]byte, FormatTimed.Width())
	FormatTimed.Encode(buf, &s)
	require.Equal(t, s, FormatTimed.Decode(buf))
	// big-endian milliseconds up front
	require.Equal(t, byte(tm.UnixMilli()), buf[7])

	buf = make([]byte, FormatUntimed.Width())
	FormatUntimed.Encode(buf, &s)
	untimed := s
	untimed.Time = time.Time{}
	got := FormatUntimed.Decode(buf)
	require.Equal(t, untimed, got)
	require.False(t, got.HasTime())
}

func TestNoTime(t *testing.T) {
	s := Sample{Latitude: 1, Longitude: 2, Depth: 3, Strength: 4}
	buf := make([]byte, FormatTimed.Width())
	FormatTimed.Encode(buf, &s)
	got := FormatTimed.Decode(buf)
	require.False(t, got.HasTime())
	require.Equal(t, s, got)
}

func TestSlices(t *testing.T) {
	samples := []Sample{
		{Latitude: 1, Depth: 1.5, Strength: 10},
		{Latitude: 2, Depth: 2.5, Strength: 20},
		{Latitude: 3, Depth: 3.5, Strength: 30},
	}
	raw := FormatUntimed.EncodeSlice(samples)
	require.Equal(t, 3*UntimedWidth, len(raw))
	require.Equal(t, samples, FormatUntimed.DecodeSlice(raw))
	require.Equal(t, samples[:2], FormatUntimed.DecodeSlice(raw[:2*UntimedWidth+5]))
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatTimed, FormatUntimed} {
		p, err := ParseFormat(f.String())
		require.NoError(t, err)
		require.Equal(t, f, p)
	}
	_, err := ParseFormat("bytes")
	require.Error(t, err)
}
