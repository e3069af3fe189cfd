package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"qrattendance/internal/config"
)

const csvContentType = "text/csv; charset=utf-8"

// ObjectStore keeps generated report files in an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	bucket := s.cfg.BucketReports
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// PutReport uploads a finished CSV report under key.
func (s *ObjectStore) PutReport(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.cfg.BucketReports, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: csvContentType,
	})
	if err != nil {
		return fmt.Errorf("put report %s: %w", key, err)
	}
	return nil
}

// PresignReport returns a time-limited GET URL that downloads the object as
// filename.
func (s *ObjectStore) PresignReport(ctx context.Context, key, filename string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	u, err := s.client.PresignedGetObject(ctx, s.cfg.BucketReports, key, s.cfg.PresignTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign report %s: %w", key, err)
	}
	return u.String(), nil
}

// ReportKey is the object key of an export's CSV file.
func ReportKey(userID int64, exportID string) string {
	return fmt.Sprintf("exports/%d/%s.csv", userID, exportID)
}
