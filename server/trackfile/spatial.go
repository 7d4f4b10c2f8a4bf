package trackfile

import (
	"math"

	"github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/sonarlog/pkg/sample"
)

// SpatialIndex finds samples by position.
// It is built once over a snapshot, and is immutable after that.
type SpatialIndex struct {
	samples []sample.Sample
	fb      *flatbush.Flatbush[float64]
}

func NewSpatialIndex(samples []sample.Sample) *SpatialIndex {
	if len(samples) == 0 {
		return &SpatialIndex{}
	}
	fb := flatbush.NewFlatbush[float64]()
	fb.Reserve(len(samples))
	for i := range samples {
		s := &samples[i]
		fb.Add(s.Longitude, s.Latitude, s.Longitude, s.Latitude)
	}
	fb.Finish()
	return &SpatialIndex{
		samples: samples,
		fb:      fb,
	}
}

func (x *SpatialIndex) Len() int {
	return len(x.samples)
}

// Nearest returns the sample closest to (lat, lon), searching no further than radius degrees.
// Distance is planar in degrees, which is good enough for the small radii this is used with.
// Ties go to the most recent sample.
func (x *SpatialIndex) Nearest(lat, lon, radius float64) (sample.Sample, bool) {
	if len(x.samples) == 0 || radius < 0 {
		return sample.Sample{}, false
	}
	best := -1
	bestDist := math.MaxFloat64
	for _, idx := range x.fb.Search(lon-radius, lat-radius, lon+radius, lat+radius) {
		s := &x.samples[idx]
		dist := math.Hypot(s.Longitude-lon, s.Latitude-lat)
		if dist > radius {
			continue
		}
		if dist < bestDist || (dist == bestDist && idx > best) {
			best = idx
			bestDist = dist
		}
	}
	if best == -1 {
		return sample.Sample{}, false
	}
	return x.samples[best], true
}
