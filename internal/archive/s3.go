// Package archive uploads snapshots of the persisted windows to S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/onnwee/zonefeed/internal/ingest"
)

// Configuration errors.
var (
	ErrMissingBucket      = errors.New("archive bucket is required")
	ErrMissingCredentials = errors.New("archive access key ID and secret are required")
	ErrMissingEndpoint    = errors.New("archive endpoint is required")
)

// Content types of the uploaded snapshots.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds connection settings for the archive bucket.
type Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string // defaults to "auto"
	Prefix          string // key prefix, defaults to "snapshots"
}

// NewClient creates an S3 client for an S3-compatible endpoint using
// static credentials and path-style addressing.
func NewClient(cfg Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	return s3.New(s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	}), nil
}

// S3 uploads the committed windows after every batch. Each batch writes a
// dated snapshot pair and overwrites the "latest" pair. It implements ingest.Sink.
type S3 struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	logger  *slog.Logger
	timeNow func() time.Time
}

// New creates an S3 archive sink.
func New(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *S3 {
	if prefix == "" {
		prefix = "snapshots"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		logger:  logger,
		timeNow: time.Now,
	}
}

// Name implements ingest.Sink.
func (a *S3) Name() string {
	return "s3"
}

// Publish uploads both windows.
func (a *S3) Publish(ctx context.Context, u ingest.Update) error {
	day := a.timeNow().UTC().Format("2006/01/02")
	objects := []struct {
		key         string
		body        []string
		contentType string
	}{
		{path.Join(a.prefix, day, u.BatchID, "data.csv"), u.Detailed, ContentTypeCSV},
		{path.Join(a.prefix, day, u.BatchID, "simple.txt"), u.Simple, ContentTypeText},
		{path.Join(a.prefix, "latest", "data.csv"), u.Detailed, ContentTypeCSV},
		{path.Join(a.prefix, "latest", "simple.txt"), u.Simple, ContentTypeText},
	}

	for _, o := range objects {
		body := []byte(strings.Join(o.body, "\n"))
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(a.bucket),
			Key:           aws.String(o.key),
			Body:          bytes.NewReader(body),
			ContentType:   aws.String(o.contentType),
			ContentLength: aws.Int64(int64(len(body))),
			Metadata:      map[string]string{"batch-id": u.BatchID},
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", o.key, err)
		}
	}

	a.logger.Debug("archived window snapshots",
		slog.String("batch_id", u.BatchID),
		slog.String("bucket", a.bucket))
	return nil
}
