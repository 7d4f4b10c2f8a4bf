// Package server is the sonar logging daemon.
// It owns the sample cache file, feeds it from a sampler, drains it into a blob store,
// and serves an HTTP API for looking at recent samples.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonarlog/pkg/blobstore"
	"github.com/cyclopcam/sonarlog/pkg/ringfile"
	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/cyclopcam/sonarlog/pkg/samplering"
	"github.com/cyclopcam/sonarlog/server/export"
	"github.com/cyclopcam/sonarlog/server/exportdb"
	"github.com/cyclopcam/sonarlog/server/sampler"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log      logs.Log
	Cache    *samplering.Cache
	ExportDB *exportdb.ExportDB
	Storage  blobstore.Store
	Pump     *sampler.Pump
	Exporter *export.Exporter

	// ShutdownComplete receives one value (the first error encountered during shutdown, or nil) when Shutdown finishes
	ShutdownComplete chan error

	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
	wsUpgrader   websocket.Upgrader
	shutdownOnce sync.Once
}

// NewServer opens (or creates) the sample cache, and wires up everything around it.
// If the cache already exists with a different capacity, it is resized.
func NewServer(log logs.Log, cfg Config) (*Server, error) {
	rc, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	cache, err := openOrCreateCache(log, cfg.RingFile, rc.format, rc.capacity)
	if err != nil {
		return nil, err
	}

	db, err := exportdb.Open(log, cfg.ExportDB)
	if err != nil {
		cache.Close()
		return nil, err
	}

	// Open blob store
	var store blobstore.Store
	if cfg.Storage.GCS != nil {
		store, err = blobstore.NewGCS(context.Background(), log, cfg.Storage.GCS.Bucket)
	} else {
		store, err = blobstore.NewFS(log, cfg.Storage.Filesystem.Root)
	}
	if err != nil {
		cache.Close()
		db.Close()
		return nil, err
	}

	var source sampler.Source
	if cfg.Simulate {
		log.Infof("Simulating a depth sounder, with seed %v", cfg.Seed)
		start := sample.Sample{
			Latitude:  cfg.StartLatitude,
			Longitude: cfg.StartLongitude,
		}
		if rc.format == sample.FormatTimed {
			start.Time = time.Now().UTC().Truncate(time.Millisecond)
		}
		source = sampler.NewSimulator(cfg.Seed, rc.sampleInterval, start)
	}

	s := &Server{
		Log:              log,
		Cache:            cache,
		ExportDB:         db,
		Storage:          store,
		Pump:             sampler.NewPump(log, source, cache),
		ShutdownComplete: make(chan error, 1),
	}
	s.Exporter = export.NewExporter(log, cache, store, db, export.Settings{
		Prefix:    cfg.ExportPrefix,
		Interval:  rc.exportInterval,
		BatchSize: cfg.ExportBatchSize,
	})
	s.wsUpgrader.CheckOrigin = func(r *http.Request) bool { return true }
	if err := s.setupHttpRoutes(); err != nil {
		s.closeStorage()
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler: s.httpRouter,
	}
	s.Pump.Start()
	s.Exporter.Start()
	return s, nil
}

func openOrCreateCache(log logs.Log, filename string, format sample.Format, capacity int) (*samplering.Cache, error) {
	cache, err := samplering.OpenCache(filename, format, ringfile.OpenModeReadWrite)
	if errors.Is(err, os.ErrNotExist) {
		log.Infof("Creating sample cache %v with room for %v %v samples", filename, capacity, format)
		if err := os.MkdirAll(filepath.Dir(filename), 0770); err != nil {
			return nil, err
		}
		return samplering.CreateCache(filename, format, capacity)
	} else if err != nil {
		return nil, fmt.Errorf("Failed to open sample cache %v: %w", filename, err)
	}
	log.Infof("Opened sample cache %v, holding %v of %v samples", filename, cache.Used(), cache.Capacity())
	if cache.Capacity() != capacity {
		log.Infof("Resizing sample cache from %v to %v samples", cache.Capacity(), capacity)
		if err := cache.SetCapacity(capacity); err != nil {
			cache.Close()
			return nil, fmt.Errorf("Failed to resize sample cache %v: %w", filename, err)
		}
	}
	return cache, nil
}

// Handler is the HTTP API, for embedding the server into something else (eg a unit test)
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// ListenHTTP serves the API until Shutdown is called. If Shutdown has already been called, it returns immediately.
// addr example: ":8080"
func (s *Server) ListenHTTP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.Log.Infof("Listening on %v", ln.Addr())
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

// Shutdown stops sampling and exporting, closes the HTTP server, and closes all files.
// Samples that have not yet been exported stay in the cache file, for next time.
// It is safe to call Shutdown more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.Log.Infof("Shutdown")
		if s.signalIn != nil {
			signal.Stop(s.signalIn)
			close(s.signalIn)
		}
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		firstErr := s.httpServer.Shutdown(ctx)
		cancel()
		s.Log.Infof("Stopping sampler")
		s.Pump.Stop()
		s.Log.Infof("Stopping exporter")
		s.Exporter.Stop()
		if err := s.closeStorage(); err != nil && firstErr == nil {
			firstErr = err
		}
		if firstErr != nil {
			s.Log.Warnf("Shutdown complete, with error: %v", firstErr)
		} else {
			s.Log.Infof("Shutdown complete")
		}
		s.ShutdownComplete <- firstErr
	})
}

func (s *Server) closeStorage() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(s.Cache.Close())
	keep(s.ExportDB.Close())
	if closer, ok := s.Storage.(io.Closer); ok {
		keep(closer.Close())
	}
	return firstErr
}
