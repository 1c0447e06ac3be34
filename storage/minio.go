package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

// MinioStore implements ObjectStore on one MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{
		client: client,
		bucket: bucket,
	}
}

// EnsureBucket blocks until the bucket is reachable, retrying transient
// failures with exponential backoff. The server refuses to accept traffic
// before this succeeds.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	operation := func() (bool, error) {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("bucket", s.bucket).Msg("bucket check failed, retrying")
			return false, err
		}
		if !exists {
			return false, backoff.Permanent(fmt.Errorf("bucket %q does not exist", s.bucket))
		}
		return true, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(5))
	return err
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	// minio defers missing-key errors until the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) List(ctx context.Context, prefix string, limit int, cursor string) (*ListPage, error) {
	if limit <= 0 {
		limit = listPageSize
	}

	// cancel stops the listing stream once the page is full
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	page := &ListPage{}
	for obj := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: cursor,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if len(page.Keys) == limit {
			page.HasMore = true
			page.NextCursor = page.Keys[limit-1]
			break
		}
		page.Keys = append(page.Keys, obj.Key)
	}
	return page, nil
}
