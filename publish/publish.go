// Package publish uploads finished reports to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DocxContentType is the media type of a .docx report.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// URLExpiry is how long a returned download link stays valid.
const URLExpiry = 24 * time.Hour

var ErrStoreNotConfigured = errors.New("object store not configured")

// Store keeps uploaded objects.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store is a Store backed by an S3 or MinIO bucket. The bucket is created
// on first use.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrStoreNotConfigured)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: access key and secret key are required", ErrStoreNotConfigured)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrStoreNotConfigured)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) Put(ctx context.Context, key string, content []byte, contentType string) error {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// URL returns a presigned download link for key.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, URLExpiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Receipt describes an uploaded report.
type Receipt struct {
	RunID string
	Key   string
	URL   string
}

// Publisher uploads report files under a fresh run id each time.
type Publisher struct {
	store Store
	newID func() string
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, newID: uuid.NewString}
}

// Publish uploads the file at path as "<run id>/<file name>".
func (p *Publisher) Publish(ctx context.Context, path string) (Receipt, error) {
	if p == nil || p.store == nil {
		return Receipt{}, ErrStoreNotConfigured
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Receipt{}, fmt.Errorf("read report: %w", err)
	}

	runID := p.newID()
	key := objectKey(runID, filepath.Base(path))
	if err := p.store.Put(ctx, key, data, contentType(path)); err != nil {
		return Receipt{}, err
	}

	url, err := p.store.URL(ctx, key)
	if err != nil {
		// The upload itself succeeded.
		url = ""
	}
	return Receipt{RunID: runID, Key: key, URL: url}, nil
}

func contentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return DocxContentType
	}
	return "application/octet-stream"
}

func objectKey(runID, name string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}
