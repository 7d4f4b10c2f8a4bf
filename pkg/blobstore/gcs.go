package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
	"google.golang.org/api/googleapi"
)

// GCS is a Google Cloud Storage-based blob store
type GCS struct {
	bucketName string
	client     *gcs.Client
	bucket     *gcs.BucketHandle
	log        logs.Log
}

// NewGCS uses the default application credentials of the environment
func NewGCS(ctx context.Context, log logs.Log, bucketName string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCS{
		bucketName: bucketName,
		client:     client,
		bucket:     client.Bucket(bucketName),
		log:        log,
	}, nil
}

func (s *GCS) Put(ctx context.Context, name string, r io.Reader) error {
	if err := checkName(name); err != nil {
		return err
	}
	w := s.bucket.Object(name).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	// The object is only committed once Close succeeds
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("%w: gs://%v/%v", ErrExists, s.bucketName, name)
		}
		return err
	}
	s.log.Debugf("Wrote gs://%v/%v", s.bucketName, name)
	return nil
}

func (s *GCS) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return s.bucket.Object(name).NewReader(ctx)
}

func (s *GCS) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.bucket.Object(name).Delete(ctx)
}

func (s *GCS) Close() error {
	return s.client.Close()
}
