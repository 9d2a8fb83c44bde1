package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/you-humble/taskboard/internal/domain"

	"github.com/minio/minio-go/v7"
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Region          string
	Retry           RetryConfig
}

// missingSettings names the required settings that are absent, using the
// environment variable each one is usually set through.
func (c Config) missingSettings() []string {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "AWS_S3_ENDPOINT")
	}
	if c.Bucket == "" {
		missing = append(missing, "AWS_S3_BUCKET")
	}
	if c.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if c.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	return missing
}

// Store adapts object storage for image blobs. Readiness is decided once at
// construction from configuration completeness and never changes afterwards;
// every operation on a store that is not ready fails fast with
// domain.ErrBlobStoreNotReady without touching the network.
type Store struct {
	db     *minio.Client
	bucket string
	ready  bool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if missing := cfg.missingSettings(); len(missing) > 0 {
		slog.Warn("blob storage disabled: incomplete configuration",
			slog.String("missing", strings.Join(missing, ", ")),
		)
		return &Store{}, nil
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:     client,
		bucket: cfg.Bucket,
		ready:  true,
	}, nil
}

func (s *Store) Ready() bool { return s.ready }

func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if !s.ready {
		return domain.ErrBlobStoreNotReady
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.db.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	return nil
}

// Delete removes the object under key. A missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !s.ready {
		return domain.ErrBlobStoreNotReady
	}

	err := s.db.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		var merr minio.ErrorResponse
		if errors.As(err, &merr) && merr.Code == minio.NoSuchKey {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", key, err)
	}

	return nil
}

// SignDownloadURL issues a time-limited credential-free GET URL for key.
func (s *Store) SignDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !s.ready {
		return "", domain.ErrBlobStoreNotReady
	}

	u, err := s.db.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}

	return u.String(), nil
}
