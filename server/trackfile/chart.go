package trackfile

import (
	"errors"
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/fogleman/gg"
)

var ErrNoSamples = errors.New("no samples")

const (
	MinChartSize = 16
	MaxChartSize = 4096
)

// RenderDepthChart draws the depth profile of the samples, oldest on the left.
// Depth increases downwards, with the surface at the top edge.
func RenderDepthChart(samples []sample.Sample, width, height int) (image.Image, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if width < MinChartSize || height < MinChartSize || width > MaxChartSize || height > MaxChartSize {
		return nil, fmt.Errorf("Chart size %v x %v must be between %v and %v", width, height, MinChartSize, MaxChartSize)
	}

	maxDepth := float32(0)
	for i := range samples {
		if !math32.IsNaN(samples[i].Depth) {
			maxDepth = math32.Max(maxDepth, samples[i].Depth)
		}
	}
	if maxDepth <= 0 {
		maxDepth = 1
	}
	// Leave some water under the deepest point
	maxDepth *= 1.1

	const margin = 4.0
	plotW := float64(width) - 2*margin
	plotH := float64(height) - 2*margin
	x := func(i int) float64 {
		if len(samples) == 1 {
			return margin + plotW/2
		}
		return margin + plotW*float64(i)/float64(len(samples)-1)
	}
	y := func(depth float32) float64 {
		return margin + plotH*float64(depth/maxDepth)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0.05, 0.15, 0.3)
	dc.Clear()

	// Seabed, filled below the profile
	dc.MoveTo(x(0), float64(height))
	for i := range samples {
		d := samples[i].Depth
		if math32.IsNaN(d) || d < 0 {
			d = 0
		}
		dc.LineTo(x(i), y(d))
	}
	dc.LineTo(x(len(samples)-1), float64(height))
	dc.ClosePath()
	dc.SetRGB(0.55, 0.45, 0.3)
	dc.FillPreserve()
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(1.5)
	dc.Stroke()

	return dc.Image(), nil
}
