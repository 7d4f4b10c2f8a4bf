// Package blobstore is where exported sample batches end up
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrInvalidName = errors.New("invalid blob name")
	ErrExists      = errors.New("blob already exists")
)

// Store is an abstraction of a blob store (eg a directory, or a GCS bucket).
// Names use forward slashes, eg "sonar/1709294400000-512.csv".
type Store interface {
	// Put never replaces an existing blob. It fails with ErrExists instead.
	Put(ctx context.Context, name string, r io.Reader) error

	// When finished, you must close the ReadCloser
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	Delete(ctx context.Context, name string) error
}

// ReadAll returns the entire contents of a blob
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	r, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w '%v'", ErrInvalidName, name)
	}
	return nil
}
