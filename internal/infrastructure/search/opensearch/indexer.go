package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

var (
	ErrIndexCreationFailed = errors.New(errors.ErrCodeSearchError, "index creation failed")
	ErrBulkFailed          = errors.New(errors.ErrCodeSearchError, "bulk batch failed")
)

// MentionDocument is one extracted snippet stored in the mention index.
type MentionDocument struct {
	PublicationID string    `json:"publication_id"`
	Snippet       string    `json:"snippet"`
	Position      int       `json:"position"`
	Datasets      []string  `json:"datasets,omitempty"`
	Source        string    `json:"source"`
	Model         string    `json:"model,omitempty"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// SnippetID derives a stable document id so re-indexing a publication
// overwrites instead of duplicating.
func SnippetID(publicationID string, position int, snippet string) string {
	h := xxhash.New()
	_, _ = h.WriteString(publicationID)
	_, _ = h.WriteString("\x00")
	_, _ = fmt.Fprintf(h, "%d", position)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(snippet)
	return fmt.Sprintf("%016x", h.Sum64())
}

// BulkItemError describes one rejected document.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarizes a bulk index call.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// MentionIndex writes and queries snippets in a single OpenSearch index.
type MentionIndex struct {
	client    *Client
	index     string
	batchSize int
	refresh   string
	logger    logging.Logger
}

func NewMentionIndex(client *Client, cfg config.OpenSearchConfig, logger logging.Logger) *MentionIndex {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	idx := &MentionIndex{
		client:    client,
		index:     cfg.Index,
		batchSize: cfg.BulkBatchSize,
		refresh:   "false",
		logger:    logger,
	}
	if idx.index == "" {
		idx.index = config.DefaultOpenSearchIndex
	}
	if idx.batchSize <= 0 {
		idx.batchSize = 500
	}
	return idx
}

// Name returns the index name.
func (m *MentionIndex) Name() string { return m.index }

// MentionIndexMapping keeps snippets analyzed as English text and ids as
// keywords.
func MentionIndexMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"publication_id": map[string]any{"type": "keyword"},
				"snippet":        map[string]any{"type": "text", "analyzer": "english"},
				"position":       map[string]any{"type": "integer"},
				"datasets":       map[string]any{"type": "keyword"},
				"source":         map[string]any{"type": "keyword"},
				"model":          map[string]any{"type": "keyword"},
				"indexed_at":     map[string]any{"type": "date"},
			},
		},
	}
}

// EnsureIndex creates the index with MentionIndexMapping when it is missing.
func (m *MentionIndex) EnsureIndex(ctx context.Context) error {
	exists, err := m.indexExists(ctx)
	if err != nil || exists {
		return err
	}

	body, err := json.Marshal(MentionIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	req := opensearchapi.IndicesCreateRequest{Index: m.index, Body: bytes.NewReader(body)}
	resp, err := req.Do(ctx, m.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchError, "failed to create index request")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return handleErrorResponse(resp, ErrIndexCreationFailed)
	}
	m.logger.Info("Index created", logging.String("index", m.index))
	return nil
}

func (m *MentionIndex) indexExists(ctx context.Context) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{m.index}}
	resp, err := req.Do(ctx, m.client.GetClient())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSearchError, "failed to check index existence")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	}
	return false, handleErrorResponse(resp, errors.New(errors.ErrCodeSearchError, "check index existence failed"))
}

// IndexSnippets writes docs in batches of the configured size. Items rejected
// by the cluster are reported in the result; a transport error aborts.
func (m *MentionIndex) IndexSnippets(ctx context.Context, docs []MentionDocument) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(docs); start += m.batchSize {
		end := start + m.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := m.bulk(ctx, docs[start:end], result); err != nil {
			return result, err
		}
	}

	m.logger.Info("Bulk index completed",
		logging.String("index", m.index),
		logging.Int("total", len(docs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (m *MentionIndex) bulk(ctx context.Context, batch []MentionDocument, result *BulkResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	sent := 0
	for _, doc := range batch {
		if doc.IndexedAt.IsZero() {
			doc.IndexedAt = time.Now().UTC()
		}
		var action bulkAction
		action.Index.Index = m.index
		action.Index.ID = SnippetID(doc.PublicationID, doc.Position, doc.Snippet)
		if err := enc.Encode(action); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode bulk action")
		}
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode mention document")
		}
		sent++
	}
	if sent == 0 {
		return nil
	}

	req := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: m.refresh}
	resp, err := req.Do(ctx, m.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchError, "bulk request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		err := handleErrorResponse(resp, ErrBulkFailed)
		result.Failed += sent
		result.Errors = append(result.Errors, BulkItemError{DocID: "batch_error", ErrorType: "http_error", Reason: err.Error()})
		return nil
	}

	var br bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}
	for _, item := range br.Items {
		for _, info := range item {
			if info.Status >= 200 && info.Status < 300 {
				result.Succeeded++
			} else {
				result.Failed++
				result.Errors = append(result.Errors, BulkItemError{
					DocID:     info.ID,
					ErrorType: info.Error.Type,
					Reason:    info.Error.Reason,
				})
			}
		}
	}
	return nil
}

// DeletePublication removes every snippet of a publication and returns the
// number of deleted documents.
func (m *MentionIndex) DeletePublication(ctx context.Context, publicationID string) (int64, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"publication_id": publicationID}},
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal delete query")
	}
	req := opensearchapi.DeleteByQueryRequest{Index: []string{m.index}, Body: bytes.NewReader(body)}
	resp, err := req.Do(ctx, m.client.GetClient())
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSearchError, "delete by query request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return 0, handleErrorResponse(resp, errors.New(errors.ErrCodeSearchError, "delete by query failed"))
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode delete response")
	}
	return out.Deleted, nil
}

func handleErrorResponse(resp *opensearchapi.Response, defaultErr *errors.AppError) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Reason != "" {
		return defaultErr.WithDetail(fmt.Sprintf("%s: %s", errResp.Error.Type, errResp.Error.Reason))
	}
	return defaultErr.WithDetail(fmt.Sprintf("status %d", resp.StatusCode))
}
