package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	apperrors "github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

type mockObjectAPI struct {
	mock.Mock
}

func (m *mockObjectAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	buckets, _ := args.Get(0).([]minio.BucketInfo)
	return buckets, args.Error(1)
}

func (m *mockObjectAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjectAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *mockObjectAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, _ := io.ReadAll(reader)
	args := m.Called(ctx, bucketName, objectName, data, objectSize, opts)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, args.Error(0)
}

func (m *mockObjectAPI) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(bytes.NewReader(args.Get(0).([]byte))), args.Error(1)
}

func (m *mockObjectAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockObjectAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	objs, _ := args.Get(0).([]minio.ObjectInfo)
	ch := make(chan minio.ObjectInfo, len(objs))
	for _, o := range objs {
		ch <- o
	}
	close(ch)
	return ch
}

func (m *mockObjectAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

func TestNewClientWithAPI_DefaultBuckets(t *testing.T) {
	c := NewClientWithAPI(&mockObjectAPI{}, config.MinIOConfig{}, nil)
	assert.Equal(t, config.DefaultModelBucket, c.ModelBucket())
	assert.Equal(t, config.DefaultReportBucket, c.ReportBucket())

	c = NewClientWithAPI(&mockObjectAPI{}, config.MinIOConfig{ModelBucket: "m", ReportBucket: "r"}, nil)
	assert.Equal(t, "m", c.ModelBucket())
	assert.Equal(t, "r", c.ReportBucket())
}

func TestEnsureBuckets_CreatesMissing(t *testing.T) {
	api := &mockObjectAPI{}
	ctx := context.Background()
	api.On("BucketExists", ctx, "models").Return(true, nil)
	api.On("BucketExists", ctx, "reports").Return(false, nil)
	api.On("MakeBucket", ctx, "reports", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	c := NewClientWithAPI(api, config.MinIOConfig{ModelBucket: "models", ReportBucket: "reports", Region: "us-east-1"}, nil)
	require.NoError(t, c.EnsureBuckets(ctx))
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "MakeBucket", ctx, "models", mock.Anything)
}

func TestEnsureBuckets_ExistsError(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("BucketExists", mock.Anything, "models").Return(false, errors.New("denied"))

	c := NewClientWithAPI(api, config.MinIOConfig{ModelBucket: "models", ReportBucket: "reports"}, nil)
	err := c.EnsureBuckets(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageError))
}

func TestEnsureBuckets_MakeError(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("BucketExists", mock.Anything, mock.Anything).Return(false, nil)
	api.On("MakeBucket", mock.Anything, "models", mock.Anything).Return(errors.New("quota"))

	c := NewClientWithAPI(api, config.MinIOConfig{ModelBucket: "models", ReportBucket: "reports"}, nil)
	err := c.EnsureBuckets(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageError))
}

func TestHealthCheck(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{{Name: "models"}}, nil).Once()
	api.On("ListBuckets", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	c := NewClientWithAPI(api, config.MinIOConfig{}, nil)
	assert.NoError(t, c.HealthCheck(context.Background()))

	err := c.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
}
