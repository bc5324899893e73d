// Package storage holds the blob store backends and the decorator that
// times their calls.
package storage

import (
	"context"
	"io"
	"time"

	"drive-service/internal/repository"
)

const (
	OperationPut     = "put"
	OperationRemove  = "remove"
	OperationPresign = "presign"
)

type Observer interface {
	ObserveBlob(backend, operation string, elapsed time.Duration, err error)
}

// Instrumented reports the latency and outcome of every call to the
// wrapped store.
type Instrumented struct {
	next     repository.BlobStore
	backend  string
	observer Observer
}

func NewInstrumented(next repository.BlobStore, backend string, observer Observer) *Instrumented {
	return &Instrumented{next: next, backend: backend, observer: observer}
}

func (s *Instrumented) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := s.next.Put(ctx, key, body, size, contentType)
	s.observer.ObserveBlob(s.backend, OperationPut, time.Since(start), err)
	return err
}

func (s *Instrumented) RemoveMany(ctx context.Context, keys []string) error {
	start := time.Now()
	err := s.next.RemoveMany(ctx, keys)
	s.observer.ObserveBlob(s.backend, OperationRemove, time.Since(start), err)
	return err
}

func (s *Instrumented) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	url, err := s.next.SignedDownloadURL(ctx, key, ttl)
	s.observer.ObserveBlob(s.backend, OperationPresign, time.Since(start), err)
	return url, err
}
