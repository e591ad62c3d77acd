package clients

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLTTL          time.Duration
}

// S3Storage stores generated files in a bucket and hands out presigned links.
type S3Storage struct {
	raw    *minio.Client
	bucket string
	prefix string
	ttl    time.Duration
}

func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}

	return &S3Storage{
		raw:    client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		ttl:    ttl,
	}, nil
}

// Save uploads data and returns the object key.
func (c *S3Storage) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	key := c.prefix + time.Now().Format("20060102") + "/" + path.Base(fileName)

	_, err := c.raw.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeFor(fileName),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q failed: %w", key, err)
	}
	return key, nil
}

func (c *S3Storage) URL(ctx context.Context, key string) (string, error) {
	u, err := c.raw.PresignedGetObject(ctx, c.bucket, key, c.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign get object %q failed: %w", key, err)
	}
	return u.String(), nil
}

// Cleanup removes objects under the prefix older than maxAge.
func (c *S3Storage) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for obj := range c.raw.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: c.prefix, Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("list objects failed: %w", obj.Err)
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := c.raw.RemoveObject(ctx, c.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("remove object %q failed: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}

func contentTypeFor(fileName string) string {
	switch path.Ext(fileName) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
