// Package export ships samples out of the cache, in batches, to a blob store
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonarlog/pkg/blobstore"
	"github.com/cyclopcam/sonarlog/pkg/perfstats"
	"github.com/cyclopcam/sonarlog/pkg/samplering"
	"github.com/cyclopcam/sonarlog/server/exportdb"
	"github.com/cyclopcam/sonarlog/server/trackfile"
)

// Number of suffixes tried when a blob name is already taken
const maxNameAttempts = 100

type Settings struct {
	Prefix    string        // Blob names are <Prefix>/<first sample unix ms>-<count>.csv, or <Prefix>/<first sample unix ms>-<count>-<n>.csv if that is taken
	Interval  time.Duration // Time between drains
	BatchSize int           // Maximum samples per blob
}

type Stats struct {
	Batches     int64     `json:"batches"`
	Samples     int64     `json:"samples"`
	LostBatches int64     `json:"lostBatches"`
	LostSamples int64     `json:"lostSamples"`
	LastError   string    `json:"lastError,omitempty"`
	LastExport  time.Time `json:"lastExport"`

	Uploads perfstats.Timing `json:"uploads"` // Time taken by blob store uploads, including failures
}

// Exporter drains a Cache into a blob store.
// There is no retry. Once a batch is drained it is gone from the cache, so if the upload
// fails, that batch is lost, and the loss is logged and counted.
type Exporter struct {
	log      logs.Log
	cache    *samplering.Cache
	store    blobstore.Store
	db       *exportdb.ExportDB
	settings Settings

	runLock sync.Mutex // Serializes RunOnce

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsLock sync.Mutex
	stats     Stats

	uploadTime perfstats.TimeAccumulator
}

func NewExporter(log logs.Log, cache *samplering.Cache, store blobstore.Store, db *exportdb.ExportDB, settings Settings) *Exporter {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 1000
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	return &Exporter{
		log:      log,
		cache:    cache,
		store:    store,
		db:       db,
		settings: settings,
	}
}

// Start a goroutine that calls RunOnce every Interval
func (e *Exporter) Start() {
	if e.cancel != nil {
		return
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.wg.Add(1)
	go e.run(e.ctx)
}

// Stop the background goroutine, and wait for any upload in progress
func (e *Exporter) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.cancel = nil
}

func (e *Exporter) Stats() Stats {
	e.statsLock.Lock()
	st := e.stats
	e.statsLock.Unlock()
	st.Uploads = e.uploadTime.Timing()
	return st
}

func (e *Exporter) run(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.settings.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
				e.log.Errorf("Export failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce drains the cache, one batch at a time, until it is empty.
// Returns the number of samples exported. Stops at the first failed batch.
func (e *Exporter) RunOnce(ctx context.Context) (int, error) {
	e.runLock.Lock()
	defer e.runLock.Unlock()

	total := 0
	for ctx.Err() == nil {
		n, err := e.exportBatch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < e.settings.BatchSize {
			break
		}
	}
	return total, nil
}

// Returns the number of samples exported (zero if the cache was empty)
func (e *Exporter) exportBatch(ctx context.Context) (int, error) {
	samples, err := e.cache.Drain(e.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("Failed to drain cache: %w", err)
	}
	if len(samples) == 0 {
		return 0, nil
	}

	first := samples[0]
	last := samples[len(samples)-1]
	firstMS := int64(0)
	if first.HasTime() {
		firstMS = first.Time.UnixMilli()
	} else {
		firstMS = time.Now().UnixMilli()
	}
	base := path.Join(e.settings.Prefix, fmt.Sprintf("%v-%v", firstMS, len(samples)))

	lost := func(err error) (int, error) {
		e.log.Errorf("Lost batch of %v samples (%v): %v", len(samples), base, err)
		e.statsLock.Lock()
		e.stats.LostBatches++
		e.stats.LostSamples += int64(len(samples))
		e.stats.LastError = err.Error()
		e.statsLock.Unlock()
		return 0, err
	}

	buf := bytes.Buffer{}
	if err := trackfile.WriteCSV(&buf, samples); err != nil {
		return lost(err)
	}
	name, err := e.upload(ctx, base, buf.Bytes())
	if err != nil {
		return lost(fmt.Errorf("Failed to upload %v: %w", base, err))
	}

	batch := &exportdb.Batch{
		Name:      name,
		Samples:   len(samples),
		FirstTime: dbh.MakeIntTime(first.Time),
		LastTime:  dbh.MakeIntTime(last.Time),
	}
	if err := e.db.AddBatch(batch); err != nil {
		// The data is safe in the blob store, we just can't list it
		e.log.Warnf("Uploaded %v, but failed to record it: %v", name, err)
	}

	e.log.Infof("Exported %v samples to %v", len(samples), name)
	e.statsLock.Lock()
	e.stats.Batches++
	e.stats.Samples += int64(len(samples))
	e.stats.LastExport = time.Now()
	e.statsLock.Unlock()
	return len(samples), nil
}

// Two batches can start in the same millisecond (untimed samples, or pushed samples
// sharing a timestamp), so we never assume that the natural name is free.
func (e *Exporter) upload(ctx context.Context, base string, data []byte) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := base + ".csv"
		if i != 0 {
			name = fmt.Sprintf("%v-%v.csv", base, i)
		}
		err := e.uploadTime.Time(func() error { return e.store.Put(ctx, name, bytes.NewReader(data)) })
		if !errors.Is(err, blobstore.ErrExists) {
			return name, err
		}
	}
	return "", fmt.Errorf("%w: all %v names are taken", blobstore.ErrExists, maxNameAttempts)
}
