package storage

import (
	"context"
	"fmt"

	"drive-service/internal/config"
	"drive-service/internal/repository"
	"drive-service/internal/storage/minio"
	"drive-service/internal/storage/s3"
)

const (
	errUnknownBackendFmt = "unknown blob backend %q"
	errEnsureBucketFmt   = "failed to ensure bucket: %w"
)

type backend interface {
	repository.BlobStore
	EnsureBucket(ctx context.Context) error
}

// Open builds the configured backend wrapped in Instrumented. The bucket is
// created first when cfg.EnsureBucket is set.
func Open(ctx context.Context, cfg *config.BlobConfig, observer Observer) (*Instrumented, error) {
	var store backend
	switch cfg.Backend {
	case config.BlobBackendS3:
		client, err := s3.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		store = client
	case config.BlobBackendMinIO:
		client, err := minio.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		store = client
	default:
		return nil, fmt.Errorf(errUnknownBackendFmt, cfg.Backend)
	}

	if cfg.EnsureBucket {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf(errEnsureBucketFmt, err)
		}
	}

	return NewInstrumented(store, cfg.Backend, observer), nil
}
