package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrInvalidKey = errors.New("documents: invalid storage key")

// Storage persists generated files. Put returns the locator recorded in the
// documents table; Get accepts that same locator.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
}

func cleanKey(key string) (string, error) {
	k := filepath.ToSlash(filepath.Clean("/" + strings.TrimSpace(key)))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", ErrInvalidKey
	}
	return k, nil
}

// LocalStorage writes files under Dir.
type LocalStorage struct {
	Dir string
}

func (s LocalStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("documents: mkdir: %w", err)
	}
	// O_EXCL keeps generated files immutable.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("documents: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("documents: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func (s LocalStorage) Get(ctx context.Context, locator string) ([]byte, error) {
	b, err := os.ReadFile(locator)
	if err != nil {
		return nil, fmt.Errorf("documents: read %s: %w", locator, err)
	}
	return b, nil
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinIOStorage stores files as objects in one bucket. Locators have the form
// minio://<bucket>/<key>.
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("documents: minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOStorage{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinIOStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, k, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file %s: %w", k, err)
	}
	return s.locator(k), nil
}

func (s *MinIOStorage) Get(ctx context.Context, locator string) ([]byte, error) {
	k, err := s.keyFromLocator(locator)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", k, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *MinIOStorage) locator(key string) string {
	return "minio://" + s.bucket + "/" + key
}

func (s *MinIOStorage) keyFromLocator(locator string) (string, error) {
	prefix := "minio://" + s.bucket + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", fmt.Errorf("%w: %q is not in bucket %s", ErrInvalidKey, locator, s.bucket)
	}
	return cleanKey(strings.TrimPrefix(locator, prefix))
}
