package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"drive-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"

	errFailedCreateClientFmt  = "failed to create MinIO client: %w"
	errInvalidEndpointFmt     = "invalid MinIO endpoint %q: %w"
	errFailedPutObjectFmt     = "failed to put object %q: %w"
	errFailedRemoveObjectsFmt = "failed to remove objects: %w"
	errObjectsNotRemovedFmt   = "%d of %d objects not removed, first %q: %v"
	errFailedPresignFmt       = "failed to generate presigned download URL: %w"
	errFailedEnsureBucketFmt  = "failed to create bucket %q: %w"
	errBucketMissingAfterFmt  = "bucket %q does not exist after create attempt"
)

// Client stores file payloads in a MinIO bucket.
type Client struct {
	client *minio.Client
	bucket string
	region string
}

func NewClient(cfg *config.BlobConfig) (*Client, error) {
	endpoint, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateClientFmt, err)
	}

	return &Client{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// splitEndpoint accepts host:port or a URL. An explicit scheme overrides
// the SSL setting.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.HasPrefix(endpoint, schemeHTTP) && !strings.HasPrefix(endpoint, schemeHTTPS) {
		return endpoint, useSSL, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf(errInvalidEndpointFmt, endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf(errInvalidEndpointFmt, endpoint, errors.New("missing host"))
	}

	return u.Host, u.Scheme == "https", nil
}

func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf(errFailedPutObjectFmt, key, err)
	}
	return nil
}

// RemoveMany streams keys to the multi-delete API, which batches them
// internally. Every reported failure fails the call.
func (c *Client) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for _, key := range keys {
			select {
			case objects <- minio.ObjectInfo{Key: key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failed []minio.RemoveObjectError
	for rerr := range c.client.RemoveObjects(ctx, c.bucket, objects, minio.RemoveObjectsOptions{}) {
		failed = append(failed, rerr)
	}

	if len(failed) > 0 {
		return fmt.Errorf(errFailedRemoveObjectsFmt, fmt.Errorf(errObjectsNotRemovedFmt,
			len(failed), len(keys), failed[0].ObjectName, failed[0].Err))
	}

	// A cancelled context stops the producer early without reporting errors.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf(errFailedRemoveObjectsFmt, err)
	}

	return nil
}

func (c *Client) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf(errFailedPresignFmt, err)
	}
	return u.String(), nil
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region})
	if err == nil {
		return nil
	}

	exists, existsErr := c.client.BucketExists(ctx, c.bucket)
	if existsErr != nil {
		return fmt.Errorf(errFailedEnsureBucketFmt, c.bucket, errors.Join(err, existsErr))
	}
	if !exists {
		return fmt.Errorf(errBucketMissingAfterFmt, c.bucket)
	}

	return nil
}
