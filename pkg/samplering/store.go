// Package samplering stores the most recent N sonar samples in a ring file.
//
// There are two flavours over the same storage. Log is a replay log, which is
// consumed with Read. Cache is a work queue between a sampling producer and an
// uploading consumer, which is consumed with Remove and Drain.
// Both are safe for one producer and one consumer on different goroutines.
package samplering

import (
	"errors"
	"fmt"
	"io"

	"github.com/cyclopcam/sonarlog/pkg/ringfile"
	"github.com/cyclopcam/sonarlog/pkg/sample"
)

// store holds everything that Log and Cache have in common.
// Every count on this API is in samples. The ring underneath counts in samples
// too, because its element width is the encoded sample width.
type store struct {
	ring   *ringfile.Ring
	format sample.Format
}

func createStore(filename string, format sample.Format, capacity int) (store, error) {
	r, err := ringfile.Create(filename, capacity, format.Width())
	if err != nil {
		return store{}, err
	}
	return store{ring: r, format: format}, nil
}

func openStore(filename string, format sample.Format, mode ringfile.OpenMode) (store, error) {
	r, err := ringfile.Open(filename, format.Width(), mode)
	if err != nil {
		return store{}, err
	}
	return store{ring: r, format: format}, nil
}

func (s *store) Format() sample.Format {
	return s.format
}

func (s *store) Filename() string {
	return s.ring.Filename()
}

// Write appends one sample, evicting the oldest sample if the ring is full
func (s *store) Write(smp sample.Sample) error {
	buf := make([]byte, s.format.Width())
	s.format.Encode(buf, &smp)
	return s.ring.Write(buf, 0, 1)
}

// WriteSlice appends all samples in a single write.
// Fails with ringfile.ErrOverflow if there are more samples than the capacity.
func (s *store) WriteSlice(samples []sample.Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: empty sample list", ringfile.ErrInvalidArgument)
	}
	return s.ring.Write(s.format.EncodeSlice(samples), 0, len(samples))
}

// Snapshot returns the most recent min(n, Used()) samples, oldest first, without consuming them
func (s *store) Snapshot(n int) ([]sample.Sample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: snapshot of %v samples", ringfile.ErrInvalidArgument, n)
	}
	n = min(n, s.ring.Used())
	if n == 0 {
		return []sample.Sample{}, nil
	}
	buf := make([]byte, n*s.format.Width())
	got, err := s.ring.Snapshot(buf, 0, n)
	if err != nil {
		return nil, err
	}
	return s.format.DecodeSlice(buf[:got*s.format.Width()]), nil
}

// SnapshotInto fills dst[offset:] with the most recent min(n, Used()) samples, oldest first.
// Fails with ringfile.ErrOverflow if offset+n exceeds len(dst).
func (s *store) SnapshotInto(dst []sample.Sample, offset, n int) (int, error) {
	if dst == nil || n <= 0 || offset < 0 {
		return 0, fmt.Errorf("%w: snapshot of %v samples at %v", ringfile.ErrInvalidArgument, n, offset)
	}
	if offset+n > len(dst) {
		return 0, fmt.Errorf("%w: snapshot of %v samples at %v into %v", ringfile.ErrOverflow, n, offset, len(dst))
	}
	buf := make([]byte, n*s.format.Width())
	got, err := s.ring.Snapshot(buf, 0, n)
	if err != nil {
		return 0, err
	}
	for i := 0; i < got; i++ {
		dst[offset+i] = s.format.Decode(buf[i*s.format.Width():])
	}
	return got, nil
}

// Consume exactly n samples, or nothing at all
func (s *store) take(n int) ([]sample.Sample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %v samples", ringfile.ErrInvalidArgument, n)
	}
	buf := make([]byte, n*s.format.Width())
	if err := s.ring.ReadExact(buf, 0, n); err != nil {
		return nil, err
	}
	return s.format.DecodeSlice(buf), nil
}

// Consume up to max samples. An empty store is not an error.
func (s *store) takeUpTo(max int) ([]sample.Sample, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %v samples", ringfile.ErrInvalidArgument, max)
	}
	max = min(max, s.ring.Used())
	if max == 0 {
		return []sample.Sample{}, nil
	}
	buf := make([]byte, max*s.format.Width())
	got, err := s.ring.Read(buf, 0, max)
	if errors.Is(err, io.EOF) {
		return []sample.Sample{}, nil
	} else if err != nil {
		return nil, err
	}
	return s.format.DecodeSlice(buf[:got*s.format.Width()]), nil
}

// Used returns the number of buffered samples
func (s *store) Used() int {
	return s.ring.Used()
}

// UsedBytes returns the number of buffered bytes in the underlying ring.
// It is always Used() * Format().Width().
func (s *store) UsedBytes() int {
	return s.ring.Stats().UsedBytes
}

// Capacity returns the maximum number of samples that can be buffered
func (s *store) Capacity() int {
	return s.ring.Capacity()
}

// SetCapacity resizes the store. When shrinking below Used(), the oldest samples are lost.
func (s *store) SetCapacity(n int) error {
	return s.ring.SetCapacity(n)
}

func (s *store) Stats() ringfile.Stats {
	return s.ring.Stats()
}

func (s *store) Sync() error {
	return s.ring.Sync()
}

func (s *store) Close() error {
	return s.ring.Close()
}
