package samplering

import (
	"github.com/cyclopcam/sonarlog/pkg/ringfile"
	"github.com/cyclopcam/sonarlog/pkg/sample"
)

// Log is a replay log of the most recent samples
type Log struct {
	store
}

// CreateLog creates a new log file that holds up to 'capacity' samples.
// Fails if the file already exists.
func CreateLog(filename string, format sample.Format, capacity int) (*Log, error) {
	s, err := createStore(filename, format, capacity)
	if err != nil {
		return nil, err
	}
	return &Log{store: s}, nil
}

// OpenLog opens an existing log file. The format must match the one that the file was created with.
func OpenLog(filename string, format sample.Format, mode ringfile.OpenMode) (*Log, error) {
	s, err := openStore(filename, format, mode)
	if err != nil {
		return nil, err
	}
	return &Log{store: s}, nil
}

// ReadOne consumes the oldest sample.
// Fails with ringfile.ErrUnderflow if the log is empty.
func (l *Log) ReadOne() (sample.Sample, error) {
	s, err := l.take(1)
	if err != nil {
		return sample.Sample{}, err
	}
	return s[0], nil
}

// Read consumes the n oldest samples.
// Fails with ringfile.ErrUnderflow, and consumes nothing, if fewer than n samples are buffered.
func (l *Log) Read(n int) ([]sample.Sample, error) {
	return l.take(n)
}
