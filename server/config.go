package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/sonarlog/pkg/kibi"
	"github.com/cyclopcam/sonarlog/pkg/sample"
)

type Config struct {
	RingFile        string        `json:"ringFile"`        // Path of the sample cache
	Format          string        `json:"format"`          // "timed" or "untimed"
	Capacity        string        `json:"capacity"`        // Size of the cache data region, eg "1 MB". Rounded down to whole samples.
	CapacitySamples int           `json:"capacitySamples"` // If non-zero, overrides Capacity
	ExportDB        string        `json:"exportDB"`        // Path of the sqlite DB that records exported batches
	Storage         StorageConfig `json:"storage"`         // Where exported batches are written
	ExportPrefix    string        `json:"exportPrefix"`    // Prefix of exported blob names
	ExportInterval  string        `json:"exportInterval"`  // eg "1m"
	ExportBatchSize int           `json:"exportBatchSize"` // Maximum samples per exported blob
	SampleInterval  string        `json:"sampleInterval"`  // Time between simulated samples, eg "200ms"
	Simulate        bool          `json:"simulate"`        // Run the built-in sounder simulator
	Seed            int64         `json:"seed"`            // Seed of the simulator
	StartLatitude   float64       `json:"startLatitude"`   // Starting point of the simulator
	StartLongitude  float64       `json:"startLongitude"`
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
}

func DefaultConfig() Config {
	return Config{
		RingFile:        "sonar.ring",
		Format:          "timed",
		Capacity:        "1 MB",
		ExportDB:        "exports.sqlite",
		Storage:         StorageConfig{Filesystem: &StorageConfigFS{Root: "exports"}},
		ExportPrefix:    "sonar",
		ExportInterval:  "1m",
		ExportBatchSize: 1000,
		SampleInterval:  "200ms",
		Simulate:        true,
		Seed:            1,
		StartLatitude:   -34.1915,
		StartLongitude:  18.4353,
	}
}

// LoadConfig reads a JSON config file. Fields that are missing from the file keep their default values.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(filename)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("Error parsing config file %v: %w", filename, err)
	}
	if _, err := cfg.resolve(); err != nil {
		return cfg, fmt.Errorf("Invalid config file %v: %w", filename, err)
	}
	return cfg, nil
}

// Config values, converted into the types that we run with
type resolvedConfig struct {
	format         sample.Format
	capacity       int // in samples
	exportInterval time.Duration
	sampleInterval time.Duration
}

func (c *Config) resolve() (*resolvedConfig, error) {
	r := &resolvedConfig{}
	var err error
	if r.format, err = sample.ParseFormat(c.Format); err != nil {
		return nil, err
	}
	if c.CapacitySamples != 0 {
		r.capacity = c.CapacitySamples
	} else {
		bytes, err := kibi.ParseBytes(c.Capacity)
		if err != nil {
			return nil, fmt.Errorf("capacity: %w", err)
		}
		r.capacity = kibi.SamplesForBytes(bytes, r.format.Width())
	}
	if r.capacity <= 0 {
		return nil, errors.New("capacity must be at least one sample")
	}
	if r.exportInterval, err = time.ParseDuration(c.ExportInterval); err != nil {
		return nil, fmt.Errorf("exportInterval: %w", err)
	}
	if r.sampleInterval, err = time.ParseDuration(c.SampleInterval); err != nil {
		return nil, fmt.Errorf("sampleInterval: %w", err)
	}
	if c.Storage.Filesystem == nil && c.Storage.GCS == nil {
		return nil, errors.New("One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")
	}
	return r, nil
}
