// Package sample defines the sonar sample record, and its fixed-width binary encodings.
package sample

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// A single reading from the sounder.
type Sample struct {
	Time      time.Time `json:"time"`      // Zero if the sample was stored without a timestamp
	Latitude  float64   `json:"latitude"`  // Degrees
	Longitude float64   `json:"longitude"` // Degrees
	Depth     float32   `json:"depth"`     // Meters below the transducer
	Strength  int32     `json:"strength"`  // Signal strength reported by the device
}

func (s *Sample) HasTime() bool {
	return !s.Time.IsZero()
}

// Format is one of the fixed-width binary layouts of a Sample.
// All fields are big-endian.
//
//	FormatTimed:   time(8, unix milliseconds) lat(8) lon(8) depth(4) strength(4)
//	FormatUntimed: lat(8) lon(8) depth(4) strength(4)
type Format int

const (
	FormatTimed Format = iota
	FormatUntimed
)

const (
	TimedWidth   = 32
	UntimedWidth = 24
)

// Width returns the number of bytes of one encoded sample
func (f Format) Width() int {
	switch f {
	case FormatTimed:
		return TimedWidth
	case FormatUntimed:
		return UntimedWidth
	}
	panic("Invalid sample format")
}

func (f Format) String() string {
	switch f {
	case FormatTimed:
		return "timed"
	case FormatUntimed:
		return "untimed"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func ParseFormat(s string) (Format, error) {
	switch s {
	case "timed", "":
		return FormatTimed, nil
	case "untimed":
		return FormatUntimed, nil
	}
	return 0, fmt.Errorf("Unknown sample format '%v' (expected 'timed' or 'untimed')", s)
}

// Encode writes s into dst, which must be at least f.Width() bytes long
func (f Format) Encode(dst []byte, s *Sample) {
	_ = dst[f.Width()-1]
	if f == FormatTimed {
		var ms int64
		if s.HasTime() {
			ms = s.Time.UnixMilli()
		}
		binary.BigEndian.PutUint64(dst[0:8], uint64(ms))
		dst = dst[8:]
	}
	binary.BigEndian.PutUint64(dst[0:8], math.Float64bits(s.Latitude))
	binary.BigEndian.PutUint64(dst[8:16], math.Float64bits(s.Longitude))
	binary.BigEndian.PutUint32(dst[16:20], math.Float32bits(s.Depth))
	binary.BigEndian.PutUint32(dst[20:24], uint32(s.Strength))
}

// Decode reads one sample from the start of src
func (f Format) Decode(src []byte) Sample {
	_ = src[f.Width()-1]
	s := Sample{}
	if f == FormatTimed {
		// A zero timestamp is how we store "no time", so it must decode back to a zero time.Time
		if ms := int64(binary.BigEndian.Uint64(src[0:8])); ms != 0 {
			s.Time = time.UnixMilli(ms).UTC()
		}
		src = src[8:]
	}
	s.Latitude = math.Float64frombits(binary.BigEndian.Uint64(src[0:8]))
	s.Longitude = math.Float64frombits(binary.BigEndian.Uint64(src[8:16]))
	s.Depth = math.Float32frombits(binary.BigEndian.Uint32(src[16:20]))
	s.Strength = int32(binary.BigEndian.Uint32(src[20:24]))
	return s
}

func (f Format) EncodeSlice(samples []Sample) []byte {
	w := f.Width()
	buf := make([]byte, len(samples)*w)
	for i := range samples {
		f.Encode(buf[i*w:], &samples[i])
	}
	return buf
}

// DecodeSlice decodes len(raw)/f.Width() samples. Trailing bytes of a partial sample are ignored.
func (f Format) DecodeSlice(raw []byte) []Sample {
	w := f.Width()
	samples := make([]Sample, len(raw)/w)
	for i := range samples {
		samples[i] = f.Decode(raw[i*w:])
	}
	return samples
}
