package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	graphrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// MentionSearcher queries indexed snippets. *opensearch.MentionIndex
// satisfies it.
type MentionSearcher interface {
	Search(ctx context.Context, q opensearch.SearchQuery) (*opensearch.SearchResult, error)
}

// CitationReader reads the citation graph. *graphrepo.CitationGraph
// satisfies it.
type CitationReader interface {
	DatasetsFor(ctx context.Context, publicationID string, source graphrepo.EdgeSource) ([]string, error)
	PublicationsCiting(ctx context.Context, datasetID string, limit int) ([]string, error)
	CoCitedDatasets(ctx context.Context, datasetID string, limit int) ([]graphrepo.CoCitation, error)
}

// SearchHandler serves the mention index and the citation graph. Either
// backend may be nil, in which case its routes answer 503.
type SearchHandler struct {
	index MentionSearcher
	graph CitationReader
}

func NewSearchHandler(index MentionSearcher, graph CitationReader) *SearchHandler {
	return &SearchHandler{index: index, graph: graph}
}

// Search handles GET /api/v1/search?q=&dataset=&publication=&source=&from=&size=.
func (h *SearchHandler) Search(c *gin.Context) {
	if h.index == nil {
		writeAppError(c, errors.New(errors.ErrCodeServiceUnavailable, "mention index is not configured"))
		return
	}
	q := opensearch.SearchQuery{
		Text:          c.Query("q"),
		Dataset:       c.Query("dataset"),
		PublicationID: c.Query("publication"),
		Source:        c.Query("source"),
		From:          queryInt(c, "from", 0),
		Size:          queryInt(c, "size", 0),
	}
	if strings.TrimSpace(q.Text) == "" && q.Dataset == "" && q.PublicationID == "" {
		writeAppError(c, errors.NewInvalidInput("one of q, dataset or publication is required"))
		return
	}
	res, err := h.index.Search(c.Request.Context(), q)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PublicationDatasets handles GET /api/v1/publications/:id/datasets?source=.
func (h *SearchHandler) PublicationDatasets(c *gin.Context) {
	if !h.graphReady(c) {
		return
	}
	source := graphrepo.EdgeSource(c.DefaultQuery("source", string(graphrepo.EdgeSourceLabel)))
	if source != graphrepo.EdgeSourceLabel && source != graphrepo.EdgeSourcePredicted {
		writeAppError(c, errors.NewInvalidInput("source must be label or predicted"))
		return
	}
	ids, err := h.graph.DatasetsFor(c.Request.Context(), c.Param("id"), source)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publication_id": c.Param("id"), "source": source, "datasets": ids})
}

// DatasetPublications handles GET /api/v1/datasets/:id/publications.
func (h *SearchHandler) DatasetPublications(c *gin.Context) {
	if !h.graphReady(c) {
		return
	}
	ids, err := h.graph.PublicationsCiting(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataset_id": c.Param("id"), "publications": ids})
}

type coCitationResponse struct {
	DatasetID string `json:"dataset_id"`
	Count     int64  `json:"count"`
}

// CoCited handles GET /api/v1/datasets/:id/cocited.
func (h *SearchHandler) CoCited(c *gin.Context) {
	if !h.graphReady(c) {
		return
	}
	cc, err := h.graph.CoCitedDatasets(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 10))
	if err != nil {
		writeAppError(c, err)
		return
	}
	out := make([]coCitationResponse, len(cc))
	for i, x := range cc {
		out[i] = coCitationResponse{DatasetID: x.DatasetID, Count: x.Count}
	}
	c.JSON(http.StatusOK, gin.H{"dataset_id": c.Param("id"), "cocited": out})
}

func (h *SearchHandler) graphReady(c *gin.Context) bool {
	if h.graph == nil {
		writeAppError(c, errors.New(errors.ErrCodeServiceUnavailable, "citation graph is not configured"))
		return false
	}
	return true
}
