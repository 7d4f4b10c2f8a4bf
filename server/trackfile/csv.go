// Package trackfile turns drained sonar samples into files and images for people
package trackfile

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cyclopcam/sonarlog/pkg/sample"
)

var csvHeader = []string{"time", "latitude", "longitude", "depth", "strength"}

// WriteCSV writes one row per sample, after a header row.
// Untimed samples have an empty time column.
func WriteCSV(w io.Writer, samples []sample.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	row := make([]string, len(csvHeader))
	for i := range samples {
		s := &samples[i]
		row[0] = ""
		if s.HasTime() {
			row[0] = s.Time.UTC().Format(time.RFC3339Nano)
		}
		row[1] = strconv.FormatFloat(s.Latitude, 'f', -1, 64)
		row[2] = strconv.FormatFloat(s.Longitude, 'f', -1, 64)
		row[3] = strconv.FormatFloat(float64(s.Depth), 'f', -1, 32)
		row[4] = strconv.FormatInt(int64(s.Strength), 10)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
