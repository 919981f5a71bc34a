package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ObjectAPI is the subset of the MinIO SDK used by the model store.
type ObjectAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// sdkAdapter exposes *minio.Client as an ObjectAPI. GetObject returns a
// concrete *minio.Object, which is narrowed to io.ReadCloser here.
type sdkAdapter struct {
	*minio.Client
}

func (a sdkAdapter) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

// Client holds the SDK handle and the configured bucket names.
type Client struct {
	api    ObjectAPI
	cfg    config.MinIOConfig
	logger logging.Logger
}

// NewClient connects to MinIO, verifies credentials with ListBuckets and
// creates the model and report buckets when missing.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create minio client")
	}

	c := NewClientWithAPI(sdkAdapter{sdk}, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if err := c.EnsureBuckets(ctx); err != nil {
		return nil, err
	}

	c.logger.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI builds a Client over any ObjectAPI implementation.
func NewClientWithAPI(api ObjectAPI, cfg config.MinIOConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.ModelBucket == "" {
		cfg.ModelBucket = config.DefaultModelBucket
	}
	if cfg.ReportBucket == "" {
		cfg.ReportBucket = config.DefaultReportBucket
	}
	return &Client{api: api, cfg: cfg, logger: log}
}

// EnsureBuckets creates every configured bucket that does not exist yet.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.cfg.ModelBucket, c.cfg.ReportBucket} {
		exists, err := c.api.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check bucket existence").WithDetail(bucket)
		}
		if exists {
			continue
		}
		if err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket").WithDetail(bucket)
		}
		c.logger.Info("Created bucket", logging.String("bucket", bucket))
	}
	return nil
}

// HealthCheck lists buckets to prove the endpoint and credentials work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio health check failed")
	}
	return nil
}

func (c *Client) ModelBucket() string  { return c.cfg.ModelBucket }
func (c *Client) ReportBucket() string { return c.cfg.ReportBucket }
