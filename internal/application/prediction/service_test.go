package prediction

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	graphrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/neo4j/repositories"
	pgrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mocks
// ─────────────────────────────────────────────────────────────────────────────

type mockModels struct{ mock.Mock }

func (m *mockModels) Load(ctx context.Context, key string) (*cooccur.Table, error) {
	args := m.Called(ctx, key)
	t, _ := args.Get(0).(*cooccur.Table)
	return t, args.Error(1)
}

func (m *mockModels) LoadLatest(ctx context.Context) (*cooccur.Table, string, error) {
	args := m.Called(ctx)
	t, _ := args.Get(0).(*cooccur.Table)
	return t, args.String(1), args.Error(2)
}

type mockReports struct{ mock.Mock }

func (m *mockReports) SaveReport(ctx context.Context, name string, data []byte) (string, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Error(1)
}

type mockRuns struct {
	mock.Mock
	finished []pgrepo.Run
	records  []pgrepo.EvaluationRecord
}

func (m *mockRuns) Create(ctx context.Context, run *pgrepo.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRuns) Finish(ctx context.Context, run *pgrepo.Run) error {
	m.finished = append(m.finished, *run)
	return m.Called(ctx, run).Error(0)
}

func (m *mockRuns) SaveEvaluationRecords(ctx context.Context, runID uuid.UUID, records []pgrepo.EvaluationRecord) error {
	m.records = records
	return m.Called(ctx, runID, records).Error(0)
}

type mockIndex struct {
	mock.Mock
	docs []opensearch.MentionDocument
}

func (m *mockIndex) IndexSnippets(ctx context.Context, docs []opensearch.MentionDocument) (*opensearch.BulkResult, error) {
	m.docs = docs
	args := m.Called(ctx, docs)
	r, _ := args.Get(0).(*opensearch.BulkResult)
	return r, args.Error(1)
}

type mockGraph struct {
	mock.Mock
	edges []graphrepo.PredictedEdge
}

func (m *mockGraph) RecordPredictions(ctx context.Context, publicationID, modelKey string, edges []graphrepo.PredictedEdge) error {
	m.edges = edges
	return m.Called(ctx, publicationID, modelKey, edges).Error(0)
}

type capturePublisher struct {
	msgs []*kafka.ProducerMessage
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, msg *kafka.ProducerMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

const imagingDoc = "We used the ADNI imaging data."

func newExtraction(t *testing.T) extraction.Service {
	t.Helper()
	seg := mention.SegmenterFunc(func(text string) []string { return strings.Split(text, "|") })
	ex, err := mention.NewExtractor(mention.NewLexicon([]string{"ADNI", "NHANES"}, nil), seg)
	require.NoError(t, err)
	return extraction.NewService(ex, nil)
}

func testTable() *cooccur.Table {
	return cooccur.Learn([]cooccur.TrainingExample{
		{Snippet: "ADNI cohort imaging", Datasets: []string{"adni"}},
		{Snippet: "NHANES survey nutrition", Datasets: []string{"nhanes"}},
	})
}

func newLoaded(t *testing.T, opts ...Option) Service {
	t.Helper()
	svc := NewService(newExtraction(t), nil, opts...)
	svc.SetModel(testTable(), "models/test.json")
	return svc
}

// ─────────────────────────────────────────────────────────────────────────────
// Model lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestPredict_WithoutModel(t *testing.T) {
	svc := NewService(newExtraction(t), nil)
	assert.False(t, svc.Model().Loaded)

	_, err := svc.PredictDocument(context.Background(), "p1", imagingDoc, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotLoaded))
	_, err = svc.PredictSnippet(context.Background(), "ADNI", 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotLoaded))
}

func TestLoadModel_Latest(t *testing.T) {
	models := &mockModels{}
	models.On("LoadLatest", mock.Anything).Return(testTable(), "models/latest.json", nil)

	svc := NewService(newExtraction(t), nil, WithModelSource(models))
	require.NoError(t, svc.LoadModel(context.Background(), ""))
	info := svc.Model()
	assert.True(t, info.Loaded)
	assert.Equal(t, "models/latest.json", info.Key)
	assert.Equal(t, 2, info.Datasets)
	models.AssertExpectations(t)
}

func TestLoadModel_ByKey(t *testing.T) {
	models := &mockModels{}
	models.On("Load", mock.Anything, "models/a.json").Return(testTable(), nil)

	svc := NewService(newExtraction(t), nil, WithModelSource(models))
	require.NoError(t, svc.LoadModel(context.Background(), "models/a.json"))
	assert.Equal(t, "models/a.json", svc.Model().Key)
}

func TestLoadModel_FailureKeepsCurrent(t *testing.T) {
	models := &mockModels{}
	models.On("Load", mock.Anything, "missing").Return(nil, errors.New(errors.ErrCodeModelNotFound, "no such model"))

	svc := newLoaded(t, WithModelSource(models))
	err := svc.LoadModel(context.Background(), "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))
	assert.Equal(t, "models/test.json", svc.Model().Key)
}

func TestLoadModel_NoSource(t *testing.T) {
	svc := NewService(newExtraction(t), nil)
	assert.True(t, errors.IsCode(svc.LoadModel(context.Background(), ""), errors.ErrCodeModelNotLoaded))
}

// ─────────────────────────────────────────────────────────────────────────────
// Prediction
// ─────────────────────────────────────────────────────────────────────────────

func TestPredictSnippet(t *testing.T) {
	svc := newLoaded(t)
	got, err := svc.PredictSnippet(context.Background(), "NHANES nutrition", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nhanes", got[0].Dataset)

	_, err = svc.PredictSnippet(context.Background(), "   ", 1)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestPredictDocument_RanksAndFansOut(t *testing.T) {
	index := &mockIndex{}
	index.On("IndexSnippets", mock.Anything, mock.Anything).Return(&opensearch.BulkResult{Succeeded: 1}, nil)
	graph := &mockGraph{}
	graph.On("RecordPredictions", mock.Anything, "p1", "models/test.json", mock.Anything).Return(nil)
	pub := &capturePublisher{}

	svc := newLoaded(t, WithMentionIndex(index), WithCitationGraph(graph), WithPublisher(pub, "dmi.dataset.predicted"))
	p, err := svc.PredictDocument(context.Background(), "p1", imagingDoc, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"adni", "nhanes"}, cooccur.IDs(p.Datasets))
	assert.Greater(t, p.Datasets[0].Score, p.Datasets[1].Score)
	require.Len(t, p.Snippets, 1)
	assert.Equal(t, "models/test.json", p.ModelKey)

	require.Len(t, index.docs, 1)
	assert.Equal(t, "p1", index.docs[0].PublicationID)
	assert.Equal(t, "predicted", index.docs[0].Source)
	assert.Equal(t, []string{"adni", "nhanes"}, index.docs[0].Datasets)

	require.Len(t, graph.edges, 2)
	assert.Equal(t, graphrepo.PredictedEdge{DatasetID: "adni", Score: p.Datasets[0].Score, Rank: 1}, graph.edges[0])

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "dmi.dataset.predicted", pub.msgs[0].Topic)
	assert.Equal(t, []byte("p1"), pub.msgs[0].Key)
	var env kafka.EventEnvelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].Value, &env))
	assert.Equal(t, kafka.EventDatasetPredicted, env.EventType)
	var payload kafka.DatasetPredictedPayload
	require.NoError(t, env.DecodePayload(&payload))
	require.Len(t, payload.Predictions, 2)
	assert.Equal(t, 1, payload.Predictions[0].Rank)
	assert.Equal(t, "adni", payload.Predictions[0].DatasetID)
}

func TestPredictDocument_NoSnippets(t *testing.T) {
	svc := newLoaded(t)
	p, err := svc.PredictDocument(context.Background(), "", "Nothing relevant here.", 0)
	require.NoError(t, err)
	assert.Empty(t, p.Snippets)
	assert.Empty(t, p.Datasets)
}

func TestPredictDocument_SideEffectFailuresAreTolerated(t *testing.T) {
	index := &mockIndex{}
	index.On("IndexSnippets", mock.Anything, mock.Anything).Return(nil, stderrors.New("cluster red"))
	graph := &mockGraph{}
	graph.On("RecordPredictions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("bolt closed"))
	pub := &capturePublisher{err: stderrors.New("broker down")}
	log := testutil.NewMockLogger()

	svc := NewService(newExtraction(t), log, WithMentionIndex(index), WithCitationGraph(graph), WithPublisher(pub, "t"))
	svc.SetModel(testTable(), "k")
	p, err := svc.PredictDocument(context.Background(), "p1", imagingDoc, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Datasets)
	assert.True(t, log.HasMessage("warn", "prediction side effect failed"))
}

func TestPredictDocument_AnonymousSkipsSideEffects(t *testing.T) {
	index := &mockIndex{}
	svc := newLoaded(t, WithMentionIndex(index))
	_, err := svc.PredictDocument(context.Background(), "", imagingDoc, 0)
	require.NoError(t, err)
	index.AssertNotCalled(t, "IndexSnippets", mock.Anything, mock.Anything)
}

// ─────────────────────────────────────────────────────────────────────────────
// Evaluation
// ─────────────────────────────────────────────────────────────────────────────

func evaluationDocs() []LabeledDocument {
	return []LabeledDocument{
		{ID: "d1", Text: "The ADNI cohort was analysed.", DatasetIDs: []string{"adni"}},
		{ID: "d2", Text: imagingDoc, DatasetIDs: []string{"nhanes"}},
		{ID: "d3", Text: imagingDoc},
		{ID: "d4", Text: "", DatasetIDs: []string{"adni"}},
	}
}

func TestEvaluate(t *testing.T) {
	runs := &mockRuns{}
	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("SaveEvaluationRecords", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	runs.On("Finish", mock.Anything, mock.Anything).Return(nil)
	reports := &mockReports{}
	reports.On("SaveReport", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "evaluation-") && strings.HasSuffix(name, ".xlsx")
	}), mock.Anything).Return("reports/evaluation.xlsx", nil)
	index := &mockIndex{}

	svc := newLoaded(t, WithEvaluationRegistry(runs), WithReportStore(reports), WithMentionIndex(index))
	rep, err := svc.Evaluate(context.Background(), evaluationDocs(), EvaluateOptions{ExportReport: true})
	require.NoError(t, err)

	require.Len(t, rep.Records, 3)
	assert.Equal(t, []string{"d3"}, rep.Skipped)
	assert.Equal(t, []string{"adni", "nhanes", "", "", ""}, rep.Records[0].YPred)
	assert.Equal(t, 1.0, rep.Records[0].Result.Precision)
	assert.Equal(t, 0.5, rep.Records[1].Result.Precision)
	assert.Equal(t, 0.0, rep.Records[2].Result.Precision)
	assert.Equal(t, 1.0, rep.Records[2].Result.ErrorRate)
	assert.InDelta(t, 0.5, rep.Summary.MeanPrecision, 1e-9)
	assert.Equal(t, "reports/evaluation.xlsx", rep.ReportKey)

	require.Len(t, runs.records, 3)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, pgrepo.RunStatusSucceeded, runs.finished[0].Status)
	assert.Equal(t, pgrepo.RunKindEvaluation, runs.finished[0].Kind)
	assert.InDelta(t, 0.5, runs.finished[0].MeanPrecision, 1e-9)
	index.AssertNotCalled(t, "IndexSnippets", mock.Anything, mock.Anything)
}

func TestEvaluate_RegistryFailureMarksRunFailed(t *testing.T) {
	runs := &mockRuns{}
	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("SaveEvaluationRecords", mock.Anything, mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "insert failed"))
	runs.On("Finish", mock.Anything, mock.Anything).Return(nil)

	svc := newLoaded(t, WithEvaluationRegistry(runs))
	_, err := svc.Evaluate(context.Background(), evaluationDocs(), EvaluateOptions{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	require.Len(t, runs.finished, 1)
	assert.Equal(t, pgrepo.RunStatusFailed, runs.finished[0].Status)
}

func TestEvaluate_NoGroundTruth(t *testing.T) {
	svc := newLoaded(t)
	_, err := svc.Evaluate(context.Background(), []LabeledDocument{{ID: "x", Text: imagingDoc}}, EvaluateOptions{})
	assert.True(t, errors.IsInvalidInput(err))

	_, err = svc.Evaluate(context.Background(), nil, EvaluateOptions{})
	assert.True(t, errors.IsInvalidInput(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

func submittedMessage(t *testing.T, payload any) *kafka.Message {
	t.Helper()
	env, err := kafka.NewEventEnvelope(kafka.EventPublicationSubmitted, "test", payload)
	require.NoError(t, err)
	pm, err := env.ToMessage("dmi.publication.submitted", "p1")
	require.NoError(t, err)
	return &kafka.Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value, Headers: pm.Headers}
}

func TestHandleSubmitted(t *testing.T) {
	graph := &mockGraph{}
	graph.On("RecordPredictions", mock.Anything, "p1", "models/test.json", mock.Anything).Return(nil)

	svc := newLoaded(t, WithCitationGraph(graph))
	msg := submittedMessage(t, kafka.PublicationSubmittedPayload{PublicationID: "p1", Text: imagingDoc})
	require.NoError(t, svc.HandleSubmitted(context.Background(), msg))
	graph.AssertExpectations(t)
}

func TestHandleSubmitted_MalformedIsAcknowledged(t *testing.T) {
	log := testutil.NewMockLogger()
	svc := NewService(newExtraction(t), log)
	svc.SetModel(testTable(), "k")

	assert.NoError(t, svc.HandleSubmitted(context.Background(), &kafka.Message{Value: []byte("{not json")}))
	assert.True(t, log.HasMessage("warn", "dropping undecodable message"))

	msg := submittedMessage(t, kafka.PublicationSubmittedPayload{Text: imagingDoc})
	assert.NoError(t, svc.HandleSubmitted(context.Background(), msg))
	assert.True(t, log.HasMessage("warn", "dropping payload without publication id"))

	msg = submittedMessage(t, kafka.PublicationSubmittedPayload{PublicationID: "p9"})
	assert.NoError(t, svc.HandleSubmitted(context.Background(), msg))
	assert.True(t, log.HasMessage("warn", "publication has no usable text"))
}

func TestHandleSubmitted_NoModelIsRetried(t *testing.T) {
	svc := NewService(newExtraction(t), nil)
	msg := submittedMessage(t, kafka.PublicationSubmittedPayload{PublicationID: "p1", Text: imagingDoc})
	err := svc.HandleSubmitted(context.Background(), msg)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotLoaded))
}
