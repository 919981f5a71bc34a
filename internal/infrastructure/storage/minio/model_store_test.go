package minio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	apperrors "github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

func newTestStore(api *mockObjectAPI) *ModelStore {
	c := NewClientWithAPI(api, config.MinIOConfig{ModelBucket: "models", ReportBucket: "reports"}, nil)
	return NewModelStore(c, nil)
}

func sampleTable() *cooccur.Table {
	return cooccur.Learn([]cooccur.TrainingExample{
		{Snippet: "we used the survey data", Datasets: []string{"ds-1"}},
		{Snippet: "census records were linked", Datasets: []string{"ds-2"}},
	})
}

func TestModelKey(t *testing.T) {
	assert.Equal(t, "models/run-1.json", ModelKey("run-1", false))
	assert.Equal(t, "models/run-1.json.sz", ModelKey("run-1", true))
}

func TestSave_WritesArtifactAndPointer(t *testing.T) {
	for _, compress := range []bool{false, true} {
		api := &mockObjectAPI{}
		store := newTestStore(api)
		table := sampleTable()
		want, err := cooccur.MarshalArtifact(table, compress)
		require.NoError(t, err)

		key := ModelKey("run-1", compress)
		api.On("PutObject", mock.Anything, "models", key, want, int64(len(want)), mock.Anything).Return(nil)
		api.On("PutObject", mock.Anything, "models", "models/LATEST", []byte(key), int64(len(key)), mock.Anything).Return(nil)

		got, err := store.Save(context.Background(), "run-1", table, compress)
		require.NoError(t, err)
		assert.Equal(t, key, got)
		api.AssertExpectations(t)
	}
}

func TestSave_EmptyRunID(t *testing.T) {
	store := newTestStore(&mockObjectAPI{})
	_, err := store.Save(context.Background(), "", sampleTable(), false)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestSave_UploadFailure(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("PutObject", mock.Anything, "models", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	_, err := newTestStore(api).Save(context.Background(), "run-1", sampleTable(), false)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageError))
	api.AssertNumberOfCalls(t, "PutObject", 1)
}

func TestLoadLatest_RoundTrip(t *testing.T) {
	api := &mockObjectAPI{}
	table := sampleTable()
	data, err := cooccur.MarshalArtifact(table, true)
	require.NoError(t, err)

	api.On("OpenObject", mock.Anything, "models", "models/LATEST").Return([]byte("models/run-7.json.sz\n"), nil)
	api.On("OpenObject", mock.Anything, "models", "models/run-7.json.sz").Return(data, nil)

	got, key, err := newTestStore(api).LoadLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "models/run-7.json.sz", key)
	assert.Equal(t, table.Datasets(), got.Datasets())
	assert.Equal(t, table.NumWords(), got.NumWords())
	assert.Equal(t, table.Dataset("ds-1"), got.Dataset("ds-1"))
}

func TestLoad_NotFound(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("OpenObject", mock.Anything, "models", "models/missing.json").
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})

	_, err := newTestStore(api).Load(context.Background(), "models/missing.json")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeModelNotFound))
}

func TestLoad_CorruptArtifact(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("OpenObject", mock.Anything, "models", "models/bad.json").Return([]byte("not json"), nil)

	_, err := newTestStore(api).Load(context.Background(), "models/bad.json")
	require.Error(t, err)
}

func TestLatestKey_EmptyPointer(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("OpenObject", mock.Anything, "models", "models/LATEST").Return([]byte("  \n"), nil)

	_, err := newTestStore(api).LatestKey(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeModelNotFound))
}

func TestList_NewestFirstWithoutPointer(t *testing.T) {
	api := &mockObjectAPI{}
	now := time.Now()
	api.On("ListObjects", mock.Anything, "models", minio.ListObjectsOptions{Prefix: "models/"}).Return([]minio.ObjectInfo{
		{Key: "models/a.json", Size: 10, LastModified: now.Add(-2 * time.Hour)},
		{Key: "models/LATEST", Size: 20, LastModified: now},
		{Key: "models/b.json.sz", Size: 5, LastModified: now.Add(-time.Hour)},
	})

	models, err := newTestStore(api).List(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "models/b.json.sz", models[0].Key)
	assert.Equal(t, "models/a.json", models[1].Key)
}

func TestList_Error(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("ListObjects", mock.Anything, "models", mock.Anything).Return([]minio.ObjectInfo{{Err: errors.New("boom")}})

	_, err := newTestStore(api).List(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageError))
}

func TestDelete(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("RemoveObject", mock.Anything, "models", "models/a.json", mock.Anything).Return(nil).Once()
	api.On("RemoveObject", mock.Anything, "models", "models/b.json", mock.Anything).Return(errors.New("denied")).Once()

	store := newTestStore(api)
	assert.NoError(t, store.Delete(context.Background(), "models/a.json"))
	assert.True(t, apperrors.IsCode(store.Delete(context.Background(), "models/b.json"), apperrors.ErrCodeStorageError))
}

func TestSaveReport_UsesBaseName(t *testing.T) {
	api := &mockObjectAPI{}
	data := []byte("xlsx-bytes")
	api.On("PutObject", mock.Anything, "reports", "reports/eval.xlsx", data, int64(len(data)),
		minio.PutObjectOptions{ContentType: xlsxContentType}).Return(nil)

	key, err := newTestStore(api).SaveReport(context.Background(), "../../tmp/eval.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, "reports/eval.xlsx", key)
	api.AssertExpectations(t)
}
