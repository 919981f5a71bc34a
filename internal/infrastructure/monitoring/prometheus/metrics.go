package prometheus

import (
	"strconv"
	"time"
)

// PipelineMetrics holds every metric emitted by the mention pipeline and the
// services around it.
type PipelineMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// gRPC
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Extraction
	DocumentsProcessed CounterVec
	CandidatesFound    HistogramVec
	SnippetsExtracted  HistogramVec
	ExtractionDuration HistogramVec

	// Scoring
	PredictionsTotal   CounterVec
	PredictionDuration HistogramVec
	ModelDatasets      GaugeVec
	ModelWords         GaugeVec

	// Training / evaluation
	TrainingRunsTotal CounterVec
	TrainingDuration  HistogramVec
	EvaluationScore   GaugeVec

	// Infrastructure
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec
	ErrorsTotal            CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultCountBuckets        = []float64{0, 1, 2, 5, 10, 25, 50, 100, 250}
	DefaultTrainingBuckets     = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}
	DefaultExtractionBuckets   = []float64{.001, .005, .01, .05, .1, .5, 1, 5}
)

// NewPipelineMetrics registers all metrics on collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	m := &PipelineMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.DocumentsProcessed = collector.RegisterCounter("documents_processed_total", "Documents run through mention extraction", "source", "status")
	m.CandidatesFound = collector.RegisterHistogram("candidates_per_document", "Lexicon entries surviving the boundary filter per document", DefaultCountBuckets, "source")
	m.SnippetsExtracted = collector.RegisterHistogram("snippets_per_document", "Context snippets extracted per document", DefaultCountBuckets, "source")
	m.ExtractionDuration = collector.RegisterHistogram("extraction_duration_seconds", "Mention extraction duration", DefaultExtractionBuckets, "source")

	m.PredictionsTotal = collector.RegisterCounter("predictions_total", "Ranking requests", "kind", "status")
	m.PredictionDuration = collector.RegisterHistogram("prediction_duration_seconds", "Ranking duration", DefaultExtractionBuckets, "kind")
	m.ModelDatasets = collector.RegisterGauge("model_datasets", "Datasets known to the loaded co-occurrence table", "model")
	m.ModelWords = collector.RegisterGauge("model_words", "Words known to the loaded co-occurrence table", "model")

	m.TrainingRunsTotal = collector.RegisterCounter("training_runs_total", "Training runs", "status")
	m.TrainingDuration = collector.RegisterHistogram("training_duration_seconds", "Training run duration", DefaultTrainingBuckets)
	m.EvaluationScore = collector.RegisterGauge("evaluation_score", "Mean score of the last evaluation run", "metric")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultExtractionBuckets, "topic")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// NewNopPipelineMetrics returns metrics that record nothing.
func NewNopPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		HTTPRequestsTotal:      noopCounterVec{},
		HTTPRequestDuration:    noopHistogramVec{},
		GRPCRequestsTotal:      noopCounterVec{},
		GRPCRequestDuration:    noopHistogramVec{},
		DocumentsProcessed:     noopCounterVec{},
		CandidatesFound:        noopHistogramVec{},
		SnippetsExtracted:      noopHistogramVec{},
		ExtractionDuration:     noopHistogramVec{},
		PredictionsTotal:       noopCounterVec{},
		PredictionDuration:     noopHistogramVec{},
		ModelDatasets:          noopGaugeVec{},
		ModelWords:             noopGaugeVec{},
		TrainingRunsTotal:      noopCounterVec{},
		TrainingDuration:       noopHistogramVec{},
		EvaluationScore:        noopGaugeVec{},
		CacheHitsTotal:         noopCounterVec{},
		CacheMissesTotal:       noopCounterVec{},
		MessageProcessDuration: noopHistogramVec{},
		ErrorsTotal:            noopCounterVec{},
	}
}

// Helpers

func statusLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func RecordHTTPRequest(m *PipelineMetrics, method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordGRPCRequest(m *PipelineMetrics, service, method, code string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

func RecordExtraction(m *PipelineMetrics, source string, candidates, snippets int, duration time.Duration, err error) {
	m.DocumentsProcessed.WithLabelValues(source, statusLabel(err)).Inc()
	if err != nil {
		m.ErrorsTotal.WithLabelValues("extraction", "extract_failed").Inc()
		return
	}
	m.CandidatesFound.WithLabelValues(source).Observe(float64(candidates))
	m.SnippetsExtracted.WithLabelValues(source).Observe(float64(snippets))
	m.ExtractionDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordPrediction(m *PipelineMetrics, kind string, duration time.Duration, err error) {
	m.PredictionsTotal.WithLabelValues(kind, statusLabel(err)).Inc()
	m.PredictionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordModel(m *PipelineMetrics, model string, datasets, words int) {
	m.ModelDatasets.WithLabelValues(model).Set(float64(datasets))
	m.ModelWords.WithLabelValues(model).Set(float64(words))
}

func RecordTrainingRun(m *PipelineMetrics, duration time.Duration, err error) {
	m.TrainingRunsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.TrainingDuration.WithLabelValues().Observe(duration.Seconds())
}

func RecordEvaluation(m *PipelineMetrics, meanPrecision, meanErrorRate float64) {
	m.EvaluationScore.WithLabelValues("precision").Set(meanPrecision)
	m.EvaluationScore.WithLabelValues("error_rate").Set(meanErrorRate)
}

func RecordCacheAccess(m *PipelineMetrics, cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(m *PipelineMetrics, component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
