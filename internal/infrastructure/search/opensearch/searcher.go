package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 100
)

// SearchQuery selects snippets by free text with optional exact filters.
type SearchQuery struct {
	Text          string
	Dataset       string
	PublicationID string
	Source        string
	From          int
	Size          int
}

// MentionHit is one matching snippet.
type MentionHit struct {
	ID         string          `json:"id"`
	Score      float64         `json:"score"`
	Document   MentionDocument `json:"document"`
	Highlights []string        `json:"highlights,omitempty"`
}

// DatasetFacet counts hits per dataset id.
type DatasetFacet struct {
	Dataset string `json:"dataset"`
	Count   int64  `json:"count"`
}

// SearchResult holds a page of hits plus dataset facets over all matches.
type SearchResult struct {
	Total  int64          `json:"total"`
	TookMs int64          `json:"took_ms"`
	Hits   []MentionHit   `json:"hits"`
	Facets []DatasetFacet `json:"facets"`
}

// buildSearchBody renders q as an OpenSearch query DSL document.
func buildSearchBody(q SearchQuery) map[string]any {
	var must []any
	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]any{
			"match": map[string]any{"snippet": map[string]any{"query": text, "operator": "and"}},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	var filter []any
	if q.Dataset != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"datasets": q.Dataset}})
	}
	if q.PublicationID != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"publication_id": q.PublicationID}})
	}
	if q.Source != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"source": q.Source}})
	}

	boolQuery := map[string]any{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]any{
		"from":  q.From,
		"size":  q.Size,
		"query": map[string]any{"bool": boolQuery},
		"highlight": map[string]any{
			"fields": map[string]any{"snippet": map[string]any{}},
		},
		"aggs": map[string]any{
			"datasets": map[string]any{"terms": map[string]any{"field": "datasets", "size": 20}},
		},
	}
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    MentionDocument     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Datasets struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"datasets"`
	} `json:"aggregations"`
}

// Search runs q against the mention index.
func (m *MentionIndex) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if q.From < 0 {
		return nil, errors.NewInvalidInput("from must be >= 0")
	}
	if q.Size <= 0 {
		q.Size = defaultSearchSize
	}
	if q.Size > maxSearchSize {
		q.Size = maxSearchSize
	}

	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search body")
	}
	req := opensearchapi.SearchRequest{Index: []string{m.index}, Body: bytes.NewReader(body)}
	resp, err := req.Do(ctx, m.client.GetClient())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchError, "search request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode == 404 {
		return nil, errors.NotFound("mention index not found").WithDetail(m.index)
	}
	if resp.IsError() {
		return nil, handleErrorResponse(resp, errors.New(errors.ErrCodeSearchError, "search failed"))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}

	out := &SearchResult{Total: sr.Hits.Total.Value, TookMs: sr.Took, Hits: make([]MentionHit, 0, len(sr.Hits.Hits))}
	for _, h := range sr.Hits.Hits {
		out.Hits = append(out.Hits, MentionHit{
			ID:         h.ID,
			Score:      h.Score,
			Document:   h.Source,
			Highlights: h.Highlight["snippet"],
		})
	}
	for _, b := range sr.Aggregations.Datasets.Buckets {
		out.Facets = append(out.Facets, DatasetFacet{Dataset: b.Key, Count: b.DocCount})
	}
	return out, nil
}
