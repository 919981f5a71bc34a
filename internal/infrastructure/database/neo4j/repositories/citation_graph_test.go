package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

type CitationGraphTestSuite struct {
	suite.Suite
	mockDriver *MockInfraDriver
	mockTx     *MockInfraTransaction
	graph      *CitationGraph
}

func (s *CitationGraphTestSuite) SetupTest() {
	s.mockDriver, s.mockTx = SetupMockDriver()
	s.graph = NewCitationGraph(s.mockDriver, nil)
}

func cypherContains(fragment string) interface{} {
	return mock.MatchedBy(func(q string) bool { return strings.Contains(q, fragment) })
}

func (s *CitationGraphTestSuite) TestEnsureSchema() {
	s.mockTx.On("Run", mock.Anything, cypherContains("CREATE CONSTRAINT"), mock.Anything).Return(new(MockResult), nil).Twice()

	require.NoError(s.T(), s.graph.EnsureSchema(context.Background()))
	s.mockTx.AssertNumberOfCalls(s.T(), "Run", 2)
}

func (s *CitationGraphTestSuite) TestUpsertDatasets() {
	s.mockTx.On("Run", mock.Anything, cypherContains("UNWIND $batch"), mock.MatchedBy(func(p map[string]any) bool {
		batch := p["batch"].([]map[string]any)
		return len(batch) == 2 && batch[0]["id"] == "ds-1" && batch[1]["title"] == "Census"
	})).Return(new(MockResult), nil).Once()

	err := s.graph.UpsertDatasets(context.Background(), []DatasetNode{{ID: "ds-1", Title: "Survey"}, {ID: "ds-2", Title: "Census"}})
	require.NoError(s.T(), err)
	s.mockTx.AssertExpectations(s.T())
}

func (s *CitationGraphTestSuite) TestUpsertDatasets_EmptyIsNoop() {
	require.NoError(s.T(), s.graph.UpsertDatasets(context.Background(), nil))
	s.mockTx.AssertNotCalled(s.T(), "Run", mock.Anything, mock.Anything, mock.Anything)
}

func (s *CitationGraphTestSuite) TestRecordGroundTruth() {
	s.mockTx.On("Run", mock.Anything, cypherContains("MERGE (p)-[r:CITES_AS_DATA_SOURCE"), mock.MatchedBy(func(p map[string]any) bool {
		return p["pubId"] == "pub-1" && p["source"] == "label"
	})).Return(new(MockResult), nil).Once()

	require.NoError(s.T(), s.graph.RecordGroundTruth(context.Background(), "pub-1", []string{"ds-1"}))
	s.mockTx.AssertExpectations(s.T())
}

func (s *CitationGraphTestSuite) TestRecordGroundTruth_RequiresID() {
	err := s.graph.RecordGroundTruth(context.Background(), "", []string{"ds-1"})
	assert.True(s.T(), apperrors.IsInvalidInput(err))
}

func (s *CitationGraphTestSuite) TestRecordPredictions_ClearsThenCreates() {
	var order []string
	s.mockTx.On("Run", mock.Anything, cypherContains("DELETE r"), mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "clear") }).Return(new(MockResult), nil).Once()
	s.mockTx.On("Run", mock.Anything, cypherContains("CREATE (p)-[:CITES_AS_DATA_SOURCE"), mock.MatchedBy(func(p map[string]any) bool {
		edges := p["edges"].([]map[string]any)
		return p["source"] == "predicted" && p["model"] == "models/r1.json" && len(edges) == 2 && edges[1]["rank"] == int64(2)
	})).Run(func(mock.Arguments) { order = append(order, "create") }).Return(new(MockResult), nil).Once()

	err := s.graph.RecordPredictions(context.Background(), "pub-1", "models/r1.json", []PredictedEdge{
		{DatasetID: "ds-1", Score: 3.5, Rank: 1},
		{DatasetID: "ds-2", Score: 1.0, Rank: 2},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"clear", "create"}, order)
}

func (s *CitationGraphTestSuite) TestRecordPredictions_ClearFailureStops() {
	s.mockTx.On("Run", mock.Anything, cypherContains("DELETE r"), mock.Anything).Return(nil, errors.New("deadlock")).Once()

	err := s.graph.RecordPredictions(context.Background(), "pub-1", "m", []PredictedEdge{{DatasetID: "ds-1", Rank: 1}})
	require.Error(s.T(), err)
	s.mockTx.AssertNumberOfCalls(s.T(), "Run", 1)
}

func (s *CitationGraphTestSuite) TestDatasetsFor() {
	s.mockTx.On("Run", mock.Anything, cypherContains("RETURN d.id"), mock.MatchedBy(func(p map[string]any) bool {
		return p["source"] == "predicted"
	})).Return(&MockResult{Records: []*neo4j.Record{
		NewRecord([]string{"id"}, []any{"ds-2"}),
		NewRecord([]string{"id"}, []any{"ds-1"}),
	}}, nil)

	ids, err := s.graph.DatasetsFor(context.Background(), "pub-1", EdgeSourcePredicted)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"ds-2", "ds-1"}, ids)
}

func (s *CitationGraphTestSuite) TestDatasetsFor_BadValueType() {
	s.mockTx.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(&MockResult{Records: []*neo4j.Record{
		NewRecord([]string{"id"}, []any{int64(7)}),
	}}, nil)

	_, err := s.graph.DatasetsFor(context.Background(), "pub-1", EdgeSourceLabel)
	assert.Error(s.T(), err)
}

func (s *CitationGraphTestSuite) TestPublicationsCiting_DefaultLimit() {
	s.mockTx.On("Run", mock.Anything, cypherContains("RETURN p.id"), mock.MatchedBy(func(p map[string]any) bool {
		return p["limit"] == int64(100) && p["dsId"] == "ds-1"
	})).Return(&MockResult{Records: []*neo4j.Record{NewRecord([]string{"id"}, []any{"pub-9"})}}, nil)

	ids, err := s.graph.PublicationsCiting(context.Background(), "ds-1", 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"pub-9"}, ids)
}

func (s *CitationGraphTestSuite) TestCoCitedDatasets() {
	s.mockTx.On("Run", mock.Anything, cypherContains("count(DISTINCT p)"), mock.Anything).Return(&MockResult{Records: []*neo4j.Record{
		NewRecord([]string{"id", "shared"}, []any{"ds-3", int64(4)}),
		NewRecord([]string{"id", "shared"}, []any{"ds-5", int64(1)}),
	}}, nil)

	got, err := s.graph.CoCitedDatasets(context.Background(), "ds-1", 5)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []CoCitation{{DatasetID: "ds-3", Count: 4}, {DatasetID: "ds-5", Count: 1}}, got)
}

func TestCitationGraph(t *testing.T) {
	suite.Run(t, new(CitationGraphTestSuite))
}
