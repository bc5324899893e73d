package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"drive-service/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	emptyAWSSessionToken = ""
	defaultS3Region      = "us-east-1"

	// deleteObjectsBatchSize is the S3 DeleteObjects per-request key limit.
	deleteObjectsBatchSize = 1000

	errFailedCreateAWSSessionFmt             = "failed to create AWS session: %w"
	errFailedPutObjectFmt                    = "failed to put object %q: %w"
	errFailedDeleteObjectsFmt                = "failed to delete objects: %w"
	errObjectsNotDeletedFmt                  = "%d of %d objects not deleted, first %q: %s"
	errFailedGeneratePresignedDownloadURLFmt = "failed to generate presigned download URL: %w"
	errFailedHeadBucketFmt                   = "failed to check bucket: %w"
	errFailedCreateBucketFmt                 = "failed to create bucket: %w"
	errFailedWaitBucketExistsFmt             = "failed to wait for bucket to exist: %w"
)

// Client stores file payloads in a single S3 bucket.
type Client struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	region   string
}

func NewClient(cfg *config.BlobConfig) (*Client, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			emptyAWSSessionToken,
		),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}

	// S3-compatible services are reached through an explicit endpoint.
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.DisableSSL = aws.Bool(!cfg.UseSSL)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateAWSSessionFmt, err)
	}

	svc := s3.New(sess)

	return &Client{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
	}, nil
}

// Put streams body to key. The uploader switches to multipart for large
// bodies, so body does not need to be seekable.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}

	if _, err := c.uploader.UploadWithContext(ctx, input); err != nil {
		return fmt.Errorf(errFailedPutObjectFmt, key, err)
	}

	return nil
}

// RemoveMany deletes keys in DeleteObjects batches. S3 reports per-key
// failures inside a successful response; any of them fails the call.
func (c *Client) RemoveMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteObjectsBatchSize {
		end := start + deleteObjectsBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := c.deleteBatch(ctx, keys[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) deleteBatch(ctx context.Context, keys []string) error {
	objects := make([]*s3.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
	}

	out, err := c.svc.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &s3.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf(errFailedDeleteObjectsFmt, err)
	}

	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf(errFailedDeleteObjectsFmt, fmt.Errorf(errObjectsNotDeletedFmt,
			len(out.Errors), len(keys), aws.StringValue(first.Key), aws.StringValue(first.Message)))
	}

	return nil
}

func (c *Client) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, _ := c.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	req.SetContext(ctx)

	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf(errFailedGeneratePresignedDownloadURLFmt, err)
	}

	return url, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	_, err := c.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}
	if !isBucketMissing(err) {
		return fmt.Errorf(errFailedHeadBucketFmt, err)
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	}

	if c.region != defaultS3Region {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(c.region),
		}
	}

	if _, err := c.svc.CreateBucketWithContext(ctx, input); err != nil {
		return fmt.Errorf(errFailedCreateBucketFmt, err)
	}

	if err := c.svc.WaitUntilBucketExistsWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	}); err != nil {
		return fmt.Errorf(errFailedWaitBucketExistsFmt, err)
	}

	return nil
}

func isBucketMissing(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}

	switch aerr.Code() {
	case s3.ErrCodeNoSuchBucket, "NotFound":
		return true
	default:
		return strings.Contains(aerr.Message(), "404")
	}
}
