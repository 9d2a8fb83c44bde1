package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func newClient(ctx context.Context, cfg Config) (*minio.Client, error) {
	retry := cfg.Retry
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = time.Second
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = 30 * time.Second
	}

	var lastErr error
	interval := retry.InitialInterval

	for attempt := range retry.MaxRetries {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context canceled before blob store init: %w", ctx.Err())
		}

		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			lastErr = fmt.Errorf("create blob store client: %w", err)
		} else {
			if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
				lastErr = err
			} else {
				return client, nil
			}
		}

		if attempt < retry.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context canceled while waiting to retry blob store: %w", ctx.Err())
			case <-time.After(interval):
				interval *= 2
				if interval > retry.MaxInterval {
					interval = retry.MaxInterval
				}
			}
		}
	}

	return nil, fmt.Errorf("init blob store failed after %d attempts: %w", retry.MaxRetries, lastErr)
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket exists: %w", err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}
