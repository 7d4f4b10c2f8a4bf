package samplering

import (
	"github.com/cyclopcam/sonarlog/pkg/ringfile"
	"github.com/cyclopcam/sonarlog/pkg/sample"
)

// Cache is a bounded work queue of samples.
// A producer writes samples as they arrive, and a consumer removes them once they've
// been shipped somewhere else. If the consumer falls behind, the oldest samples are lost.
type Cache struct {
	store
}

// CreateCache creates a new cache file that holds up to 'capacity' samples.
// Fails if the file already exists.
func CreateCache(filename string, format sample.Format, capacity int) (*Cache, error) {
	s, err := createStore(filename, format, capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{store: s}, nil
}

func OpenCache(filename string, format sample.Format, mode ringfile.OpenMode) (*Cache, error) {
	s, err := openStore(filename, format, mode)
	if err != nil {
		return nil, err
	}
	return &Cache{store: s}, nil
}

// Remove takes the n oldest samples out of the cache.
// Fails with ringfile.ErrUnderflow, and removes nothing, if fewer than n samples are buffered.
func (c *Cache) Remove(n int) ([]sample.Sample, error) {
	return c.take(n)
}

// Drain removes up to max of the oldest samples. Returns an empty slice if the cache is empty.
func (c *Cache) Drain(max int) ([]sample.Sample, error) {
	return c.takeUpTo(max)
}
