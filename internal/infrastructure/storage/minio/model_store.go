package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const (
	modelPrefix     = "models/"
	latestPointer   = "models/LATEST"
	reportPrefix    = "reports/"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ModelInfo describes a stored co-occurrence table artifact.
type ModelInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ModelStore keeps trained co-occurrence tables and evaluation reports in
// object storage. The "models/LATEST" object holds the key of the newest
// model.
type ModelStore struct {
	client *Client
	logger logging.Logger
}

func NewModelStore(client *Client, log logging.Logger) *ModelStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ModelStore{client: client, logger: log}
}

// ModelKey returns the object key of the artifact for runID.
func ModelKey(runID string, compressed bool) string {
	key := modelPrefix + runID + ".json"
	if compressed {
		key += ".sz"
	}
	return key
}

// Save uploads t under runID and moves the LATEST pointer to it.
func (s *ModelStore) Save(ctx context.Context, runID string, t *cooccur.Table, compress bool) (string, error) {
	if runID == "" {
		return "", errors.NewInvalidInput("run id is required")
	}
	data, err := cooccur.MarshalArtifact(t, compress)
	if err != nil {
		return "", err
	}

	key := ModelKey(runID, compress)
	contentType := "application/json"
	if compress {
		contentType = "application/x-snappy-framed"
	}
	if err := s.put(ctx, s.client.ModelBucket(), key, data, contentType); err != nil {
		return "", err
	}
	if err := s.put(ctx, s.client.ModelBucket(), latestPointer, []byte(key), "text/plain"); err != nil {
		return "", err
	}

	s.logger.Info("model saved",
		logging.String("key", key),
		logging.Int("bytes", len(data)),
		logging.Int("datasets", t.NumDatasets()),
		logging.Int("words", t.NumWords()),
	)
	return key, nil
}

// Load fetches and decodes the artifact stored at key.
func (s *ModelStore) Load(ctx context.Context, key string) (*cooccur.Table, error) {
	data, err := s.get(ctx, s.client.ModelBucket(), key)
	if err != nil {
		return nil, err
	}
	return cooccur.UnmarshalArtifact(data)
}

// LatestKey resolves the LATEST pointer.
func (s *ModelStore) LatestKey(ctx context.Context) (string, error) {
	data, err := s.get(ctx, s.client.ModelBucket(), latestPointer)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", errors.New(errors.ErrCodeModelNotFound, "latest model pointer is empty")
	}
	return key, nil
}

// LoadLatest loads the newest saved model.
func (s *ModelStore) LoadLatest(ctx context.Context) (*cooccur.Table, string, error) {
	key, err := s.LatestKey(ctx)
	if err != nil {
		return nil, "", err
	}
	t, err := s.Load(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return t, key, nil
}

// List returns stored models, newest first.
func (s *ModelStore) List(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for obj := range s.client.api.ListObjects(ctx, s.client.ModelBucket(), minio.ListObjectsOptions{Prefix: modelPrefix}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "failed to list models")
		}
		if obj.Key == latestPointer {
			continue
		}
		out = append(out, ModelInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

// Delete removes one model artifact. The LATEST pointer is left alone.
func (s *ModelStore) Delete(ctx context.Context, key string) error {
	if err := s.client.api.RemoveObject(ctx, s.client.ModelBucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to delete model").WithDetail(key)
	}
	return nil
}

// SaveReport uploads an evaluation workbook to the report bucket.
func (s *ModelStore) SaveReport(ctx context.Context, name string, data []byte) (string, error) {
	key := reportPrefix + path.Base(name)
	if err := s.put(ctx, s.client.ReportBucket(), key, data, xlsxContentType); err != nil {
		return "", err
	}
	s.logger.Info("report saved", logging.String("key", key), logging.Int("bytes", len(data)))
	return key, nil
}

func (s *ModelStore) put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload object").WithDetail(bucket + "/" + key)
	}
	return nil
}

func (s *ModelStore) get(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := s.client.api.OpenObject(ctx, bucket, key)
	if err != nil {
		return nil, classifyGetError(err, bucket, key)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classifyGetError(err, bucket, key)
	}
	return data, nil
}

func classifyGetError(err error, bucket, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(err, errors.ErrCodeModelNotFound, "object not found").WithDetail(bucket + "/" + key)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, "failed to download object").WithDetail(bucket + "/" + key)
}
