package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/sonarlog/pkg/kibi"
	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/cyclopcam/sonarlog/pkg/stats"
	"github.com/cyclopcam/sonarlog/server/export"
	"github.com/cyclopcam/sonarlog/server/sampler"
	"github.com/cyclopcam/sonarlog/server/trackfile"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

// Default and maximum number of samples returned by the snapshot family of APIs
const (
	defaultSnapshotSize = 100
	maxSnapshotSize     = 100000
)

// Upper bound on the body of POST /api/samples
const maxIngestBodyBytes = 16 * 1024 * 1024

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Mutating endpoints are rate limited per client IP
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/status", s.httpStatus)
	handle("GET", "/api/snapshot", s.httpSnapshot)
	handle("GET", "/api/snapshot.csv", s.httpSnapshotCSV)
	handle("GET", "/api/summary", s.httpSummary)
	handle("GET", "/api/chart.png", s.httpChart)
	handle("GET", "/api/nearest", s.httpNearest)
	handle("GET", "/api/batches", s.httpBatches)
	handle("GET", "/api/live", s.httpLive)
	ratelimited("POST", "/api/samples", s.httpIngest, 100, time.Second)
	ratelimited("POST", "/api/capacity", s.httpSetCapacity, 5, time.Minute)
	ratelimited("POST", "/api/export", s.httpExport, 10, time.Minute)

	s.httpRouter = router
	return nil
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{Time: time.Now().Unix()})
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type cacheJSON struct {
		Filename        string `json:"filename"`
		Format          string `json:"format"`
		SampleWidth     int    `json:"sampleWidth"`
		CapacitySamples int    `json:"capacitySamples"`
		UsedSamples     int    `json:"usedSamples"`
		CapacityBytes   int    `json:"capacityBytes"`
		UsedBytes       int    `json:"usedBytes"`
		Capacity        string `json:"capacity"` // Human readable
	}
	type statusJSON struct {
		Cache         cacheJSON         `json:"cache"`
		Sampler       sampler.PumpStats `json:"sampler"`
		Exporter      export.Stats      `json:"exporter"`
		TotalExported int64             `json:"totalExported"`
	}
	st := s.Cache.Stats()
	totalExported, err := s.ExportDB.TotalSamples()
	www.Check(err)
	www.SendJSON(w, &statusJSON{
		Cache: cacheJSON{
			Filename:        s.Cache.Filename(),
			Format:          s.Cache.Format().String(),
			SampleWidth:     st.Width,
			CapacitySamples: st.CapacityBytes / st.Width,
			UsedSamples:     st.UsedBytes / st.Width,
			CapacityBytes:   st.CapacityBytes,
			UsedBytes:       st.UsedBytes,
			Capacity:        kibi.FormatBytes(int64(st.CapacityBytes)),
		},
		Sampler:       s.Pump.Stats(),
		Exporter:      s.Exporter.Stats(),
		TotalExported: totalExported,
	})
}

// Read the 'n' query parameter, and return the most recent n samples, without consuming them
func (s *Server) snapshotFromQuery(r *http.Request) []sample.Sample {
	n := defaultSnapshotSize
	if v := www.QueryValue(r, "n"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i <= 0 || i > maxSnapshotSize {
			www.PanicBadRequestf("n must be between 1 and %v", maxSnapshotSize)
		}
		n = i
	}
	samples, err := s.Cache.Snapshot(n)
	www.Check(err)
	return samples
}

func (s *Server) httpSnapshot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.snapshotFromQuery(r))
}

func (s *Server) httpSummary(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, stats.Summarize(s.snapshotFromQuery(r)))
}

func (s *Server) httpSnapshotCSV(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	samples := s.snapshotFromQuery(r)
	buf := bytes.Buffer{}
	www.Check(trackfile.WriteCSV(&buf, samples))
	filename := fmt.Sprintf("sonar-%v.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%v"`, filename))
	w.Header().Set("Content-Type", "text/csv")
	w.Write(buf.Bytes())
}

func (s *Server) httpChart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	samples := s.snapshotFromQuery(r)
	width := www.QueryInt(r, "width")
	height := www.QueryInt(r, "height")
	if width == 0 {
		width = 800
	}
	if height == 0 {
		height = 300
	}
	img, err := trackfile.RenderDepthChart(samples, width, height)
	if errors.Is(err, trackfile.ErrNoSamples) {
		www.SendError(w, "No samples", http.StatusNotFound)
		return
	} else if err != nil {
		www.PanicBadRequestf("%v", err)
	}
	buf := bytes.Buffer{}
	www.Check(png.Encode(&buf, img))
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) httpNearest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	lat := requiredQueryFloat(r, "lat")
	lon := requiredQueryFloat(r, "lon")
	radius := 0.001
	if www.QueryValue(r, "radius") != "" {
		radius = requiredQueryFloat(r, "radius")
	}
	idx := trackfile.NewSpatialIndex(s.snapshotFromQuery(r))
	nearest, ok := idx.Nearest(lat, lon, radius)
	if !ok {
		www.SendError(w, "No sample within radius", http.StatusNotFound)
		return
	}
	www.SendJSON(w, &nearest)
}

func (s *Server) httpBatches(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	batches, err := s.ExportDB.RecentBatches(www.QueryInt(r, "limit"))
	www.Check(err)
	www.SendJSON(w, batches)
}

func (s *Server) httpIngest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	samples := []sample.Sample{}
	www.ReadJSON(w, r, &samples, maxIngestBodyBytes)
	if len(samples) == 0 {
		www.PanicBadRequestf("No samples")
	}
	if len(samples) > s.Cache.Capacity() {
		www.PanicBadRequestf("%v samples is more than the cache capacity of %v", len(samples), s.Cache.Capacity())
	}
	www.Check(s.Pump.Ingest(samples))
	www.SendOK(w)
}

func (s *Server) httpSetCapacity(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	n := www.RequiredQueryInt(r, "samples")
	if n <= 0 {
		www.PanicBadRequestf("samples must be positive")
	}
	s.Log.Infof("Resizing sample cache from %v to %v samples", s.Cache.Capacity(), n)
	www.Check(s.Cache.SetCapacity(n))
	www.SendOK(w)
}

func (s *Server) httpExport(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	n, err := s.Exporter.RunOnce(ctx)
	www.Check(err)
	type exportJSON struct {
		Samples int `json:"samples"`
	}
	www.SendJSON(w, &exportJSON{Samples: n})
}

func requiredQueryFloat(r *http.Request, key string) float64 {
	v := www.RequiredQueryValue(r, key)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		www.PanicBadRequestf("Must specify a number for %v", key)
	}
	return f
}
