package prediction

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DataMention-Intelligence/internal/application/training"
	pgrepo "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/evaluation"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// LabeledDocument is a publication with its ground-truth datasets.
type LabeledDocument = training.LabeledDocument

// EvaluateOptions tunes an evaluation run.
type EvaluateOptions struct {
	// ExportReport writes an xlsx workbook to the report store.
	ExportReport bool `json:"export_report"`
}

// EvaluationReport is the outcome of an evaluation run.
type EvaluationReport struct {
	RunID     string              `json:"run_id"`
	ModelKey  string              `json:"model_key"`
	Summary   evaluation.Summary  `json:"summary"`
	Records   []evaluation.Record `json:"records"`
	Skipped   []string            `json:"skipped,omitempty"`
	ReportKey string              `json:"report_key,omitempty"`
}

// Evaluate ranks the top five datasets of every document and scores the
// ranking against its ground truth. Documents without ground truth are
// skipped. Documents without extractable text score an all-placeholder
// prediction. Evaluation never triggers prediction side effects.
func (s *serviceImpl) Evaluate(ctx context.Context, docs []LabeledDocument, opts EvaluateOptions) (rep *EvaluationReport, err error) {
	m, err := s.current()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.NewInvalidInput("no evaluation documents")
	}

	run := &pgrepo.Run{
		ID:        uuid.New(),
		Kind:      pgrepo.RunKindEvaluation,
		ModelKey:  m.key,
		Documents: len(docs),
		Metadata:  map[string]interface{}{"export_report": opts.ExportReport},
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				run.Status = pgrepo.RunStatusFailed
				run.ErrorMessage = err.Error()
				s.finishRun(ctx, run)
			}
		}()
	}

	start := time.Now()
	rep = &EvaluationReport{RunID: run.ID.String(), ModelKey: m.key}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(doc.DatasetIDs) == 0 {
			rep.Skipped = append(rep.Skipped, doc.ID)
			continue
		}
		var ids []string
		p, err := s.predict(ctx, doc.ID, doc.Text, evaluation.PredictionSize)
		switch {
		case err == nil:
			ids = cooccur.IDs(p.Datasets)
		case errors.IsInvalidInput(err):
			s.logger.Debug("document has no usable text", logging.String("id", doc.ID))
		default:
			return nil, errors.Wrapf(err, errors.ErrCodeInternal, "predict %s", doc.ID)
		}
		yPred := evaluation.PadPrediction(ids)
		res, err := evaluation.Evaluate(doc.DatasetIDs, yPred)
		if err != nil {
			return nil, err
		}
		rep.Records = append(rep.Records, evaluation.Record{
			PublicationID: doc.ID,
			YTrue:         doc.DatasetIDs,
			YPred:         yPred,
			Result:        res,
		})
	}
	if len(rep.Records) == 0 {
		return nil, errors.NewInvalidInput("no evaluation document has ground truth")
	}
	rep.Summary = evaluation.Summarize(rep.Records)
	prometheus.RecordEvaluation(s.metrics, rep.Summary.MeanPrecision, rep.Summary.MeanErrorRate)

	if opts.ExportReport && s.reports != nil {
		var buf bytes.Buffer
		if err := evaluation.WriteWorkbook(&buf, rep.Summary, rep.Records); err != nil {
			return nil, err
		}
		key, err := s.reports.SaveReport(ctx, "evaluation-"+rep.RunID+".xlsx", buf.Bytes())
		if err != nil {
			return nil, err
		}
		rep.ReportKey = key
	}

	if s.runs != nil {
		if err := s.runs.SaveEvaluationRecords(ctx, run.ID, toRunRecords(rep.Records)); err != nil {
			return nil, err
		}
		run.Status = pgrepo.RunStatusSucceeded
		run.MeanPrecision = rep.Summary.MeanPrecision
		run.MeanErrorRate = rep.Summary.MeanErrorRate
		s.finishRun(ctx, run)
	}

	s.logger.Info("evaluation finished",
		logging.String("run_id", rep.RunID),
		logging.String("model_key", rep.ModelKey),
		logging.Int("documents", rep.Summary.Documents),
		logging.Int("skipped", len(rep.Skipped)),
		logging.Float64("mean_precision", rep.Summary.MeanPrecision),
		logging.Float64("mean_error_rate", rep.Summary.MeanErrorRate),
		logging.Duration("duration", time.Since(start)))
	return rep, nil
}

func (s *serviceImpl) finishRun(ctx context.Context, run *pgrepo.Run) {
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to record evaluation run", logging.String("run_id", run.ID.String()), logging.Err(err))
	}
}

func toRunRecords(records []evaluation.Record) []pgrepo.EvaluationRecord {
	out := make([]pgrepo.EvaluationRecord, len(records))
	for i, r := range records {
		out[i] = pgrepo.EvaluationRecord{
			PublicationID: r.PublicationID,
			YTrue:         r.YTrue,
			YPred:         r.YPred,
			Precision:     r.Result.Precision,
			ErrorRate:     r.Result.ErrorRate,
		}
	}
	return out
}
