package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
)

// FS is a filesystem-based blob store
type FS struct {
	Root string
	log  logs.Log
}

func NewFS(log logs.Log, root string) (*FS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create root directory %v (relative path %v): %w", absRoot, root, err)
	}
	return &FS{
		Root: absRoot,
		log:  log,
	}, nil
}

// Put writes to a temporary file and links it into place, so a reader never sees a partial blob.
// Unlike a rename, the link fails if the destination exists.
func (s *FS) Put(ctx context.Context, name string, r io.Reader) error {
	if err := checkName(name); err != nil {
		return err
	}
	fullPath := filepath.Join(s.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".put-*")
	if err != nil {
		return err
	}
	_, err = io.Copy(tmp, r)
	if errClose := tmp.Close(); err == nil {
		err = errClose
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = os.Link(tmp.Name(), fullPath)
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("%w: %v", ErrExists, name)
		}
	}
	os.Remove(tmp.Name())
	if err != nil {
		return err
	}
	s.log.Debugf("Wrote %v", name)
	return nil
}

func (s *FS) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.Root, filepath.FromSlash(name)))
}

func (s *FS) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.log.Infof("Deleting %v", name)
	return os.Remove(filepath.Join(s.Root, filepath.FromSlash(name)))
}
