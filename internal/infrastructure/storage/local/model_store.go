// Package local keeps model artifacts and evaluation reports in a directory
// on disk. It is the model store of the CLI and of deployments without
// object storage.
package local

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const (
	latestFile = "LATEST"
	reportDir  = "reports"
)

// ModelInfo describes a stored artifact.
type ModelInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ModelStore mirrors the object-store layout under dir: one artifact per
// run, a LATEST file holding the newest key, and reports/ for workbooks.
type ModelStore struct {
	dir    string
	logger logging.Logger
}

func NewModelStore(dir string, log logging.Logger) *ModelStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ModelStore{dir: dir, logger: log}
}

// Dir returns the root directory.
func (s *ModelStore) Dir() string { return s.dir }

// ModelKey returns the file name of the artifact for runID.
func ModelKey(runID string, compressed bool) string {
	key := runID + ".json"
	if compressed {
		key += ".sz"
	}
	return key
}

// Save writes t under runID and moves LATEST to it.
func (s *ModelStore) Save(ctx context.Context, runID string, t *cooccur.Table, compress bool) (string, error) {
	if runID == "" {
		return "", errors.NewInvalidInput("run id is required")
	}
	data, err := cooccur.MarshalArtifact(t, compress)
	if err != nil {
		return "", err
	}
	key := ModelKey(runID, compress)
	if err := s.write(key, data); err != nil {
		return "", err
	}
	if err := s.write(latestFile, []byte(key)); err != nil {
		return "", err
	}
	s.logger.Info("model saved",
		logging.String("path", filepath.Join(s.dir, key)),
		logging.Int("bytes", len(data)),
		logging.Int("datasets", t.NumDatasets()),
		logging.Int("words", t.NumWords()))
	return key, nil
}

// Load reads the artifact at key. A key naming an existing file outside the
// store directory is read as is, so artifacts can be passed by path.
func (s *ModelStore) Load(ctx context.Context, key string) (*cooccur.Table, error) {
	path := filepath.Join(s.dir, filepath.Base(key))
	if _, err := os.Stat(key); err == nil && strings.ContainsRune(key, filepath.Separator) {
		path = key
	}
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return cooccur.UnmarshalArtifact(data)
}

// LatestKey resolves LATEST.
func (s *ModelStore) LatestKey(ctx context.Context) (string, error) {
	data, err := s.read(filepath.Join(s.dir, latestFile))
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

// List returns stored artifacts, newest first.
func (s *ModelStore) List(ctx context.Context) ([]ModelInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to list models").WithDetail(s.dir)
	}
	var out []ModelInfo
	for _, e := range entries {
		if e.IsDir() || e.Name() == latestFile {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".json") && !strings.HasSuffix(e.Name(), ".json.sz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ModelInfo{Key: e.Name(), Size: info.Size(), LastModified: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

// SaveReport writes an evaluation workbook under reports/.
func (s *ModelStore) SaveReport(ctx context.Context, name string, data []byte) (string, error) {
	key := filepath.Join(reportDir, filepath.Base(name))
	if err := s.write(key, data); err != nil {
		return "", err
	}
	s.logger.Info("report saved", logging.String("path", filepath.Join(s.dir, key)), logging.Int("bytes", len(data)))
	return key, nil
}

func (s *ModelStore) write(key string, data []byte) error {
	path := filepath.Join(s.dir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create model directory").WithDetail(path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write artifact").WithDetail(path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write artifact").WithDetail(path)
	}
	return nil
}

func (s *ModelStore) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, errors.ErrCodeModelNotFound, "model not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read artifact").WithDetail(path)
	}
	return data, nil
}
