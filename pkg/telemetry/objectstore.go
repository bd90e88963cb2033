package telemetry

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/soundprediction/recall/pkg/config"
)

// Uploader ships a flushed telemetry file somewhere durable.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// ObjectStoreUploader copies flushed parquet files to an S3-compatible
// bucket.
type ObjectStoreUploader struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// NewObjectStoreUploader creates a minio client for the configured endpoint.
// No request is made until the first upload.
func NewObjectStoreUploader(cfg config.ObjectStoreConfig) (*ObjectStoreUploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &ObjectStoreUploader{
		mc:     mc,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Upload puts the file under prefix/<file name>.
func (u *ObjectStoreUploader) Upload(ctx context.Context, localPath string) error {
	name := objectName(u.prefix, localPath)
	_, err := u.mc.FPutObject(ctx, u.bucket, name, localPath, minio.PutObjectOptions{
		ContentType: "application/vnd.apache.parquet",
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", u.bucket, name, err)
	}
	return nil
}

func objectName(prefix, localPath string) string {
	base := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}
