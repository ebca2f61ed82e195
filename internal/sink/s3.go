package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"warc-ops/internal/config"
	"warc-ops/internal/model"
)

type objectStore interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// S3Sink uploads the job log and the run record under
// <prefix><job>/<run_id>/.
type S3Sink struct {
	store  objectStore
	prefix string

	bucketOnce sync.Once
	bucketErr  error
}

type minioStore struct {
	client *minio.Client
	bucket string
	region string
}

func (m *minioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
}

func (m *minioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func NewS3Sink(cfg config.S3Config) (*S3Sink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client for %s: %w", cfg.Endpoint, err)
	}
	return newS3Sink(&minioStore{client: client, bucket: cfg.Bucket, region: cfg.Region}, cfg.Prefix), nil
}

func newS3Sink(store objectStore, prefix string) *S3Sink {
	return &S3Sink{store: store, prefix: prefix}
}

func (s *S3Sink) Name() string { return "s3" }

// ObjectKey returns the key for file under the run's prefix.
func (s *S3Sink) ObjectKey(rec model.RunRecord, file string) string {
	runID := rec.RunID
	if runID == "" {
		runID = "unknown"
	}
	return s.prefix + path.Join(rec.JobName, runID, file)
}

func (s *S3Sink) Publish(ctx context.Context, rec model.RunRecord) error {
	s.bucketOnce.Do(func() {
		s.bucketErr = s.store.EnsureBucket(ctx)
	})
	if s.bucketErr != nil {
		return fmt.Errorf("ensure bucket: %w", s.bucketErr)
	}

	if rec.LogPath != "" {
		f, err := os.Open(rec.LogPath)
		if err != nil {
			return fmt.Errorf("open job log %s: %w", rec.LogPath, err)
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("stat job log %s: %w", rec.LogPath, err)
		}
		key := s.ObjectKey(rec, filepath.Base(rec.LogPath))
		err = s.store.Upload(ctx, key, f, info.Size(), "text/plain")
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}

	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	key := s.ObjectKey(rec, "result.json")
	if err := s.store.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Sink) Close() error { return nil }

var _ Sink = (*S3Sink)(nil)
