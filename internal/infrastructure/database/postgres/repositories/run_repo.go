// Package repositories provides the PostgreSQL-backed run registry: one row
// per training or evaluation run plus the per-document evaluation records.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Entities
// ─────────────────────────────────────────────────────────────────────────────

type RunKind string

const (
	RunKindTraining   RunKind = "training"
	RunKindEvaluation RunKind = "evaluation"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one training or evaluation execution.
type Run struct {
	ID            uuid.UUID
	Kind          RunKind
	Status        RunStatus
	ModelKey      string
	Documents     int
	Examples      int
	Datasets      int
	Words         int
	MeanPrecision float64
	MeanErrorRate float64
	ErrorMessage  string
	Metadata      map[string]interface{}
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// EvaluationRecord is the score of one publication inside an evaluation run.
type EvaluationRecord struct {
	PublicationID string
	YTrue         []string
	YPred         []string
	Precision     float64
	ErrorRate     float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Repository
// ─────────────────────────────────────────────────────────────────────────────

const runColumns = `id, kind, status, model_key, documents, examples, datasets, words,
	mean_precision, mean_error_rate, error_message, metadata, started_at, finished_at`

// RunRepo persists runs in the "runs" and "evaluation_records" tables.
type RunRepo struct {
	conn   *postgres.Connection
	logger logging.Logger
}

func NewRunRepo(conn *postgres.Connection, log logging.Logger) *RunRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RunRepo{conn: conn, logger: log}
}

// Create inserts run in the running state. A nil ID is replaced with a fresh
// UUID and a zero StartedAt with the current time.
func (r *RunRepo) Create(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.NewInvalidInput("run is nil")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	meta, err := marshalMetadata(run.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO runs (id, kind, status, model_key, documents, metadata, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.conn.DB().ExecContext(ctx, query,
		run.ID, string(run.Kind), string(run.Status), run.ModelKey, run.Documents, meta, run.StartedAt,
	); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create run")
	}
	r.logger.Debug("run created", logging.String("run_id", run.ID.String()), logging.String("kind", string(run.Kind)))
	return nil
}

// Finish stores the outcome of run and stamps finished_at.
func (r *RunRepo) Finish(ctx context.Context, run *Run) error {
	if run == nil || run.ID == uuid.Nil {
		return errors.NewInvalidInput("run id is required")
	}
	now := time.Now().UTC()
	run.FinishedAt = &now

	query := `UPDATE runs SET status = $2, model_key = $3, documents = $4, examples = $5,
		datasets = $6, words = $7, mean_precision = $8, mean_error_rate = $9,
		error_message = $10, finished_at = $11
		WHERE id = $1`
	res, err := r.conn.DB().ExecContext(ctx, query,
		run.ID, string(run.Status), run.ModelKey, run.Documents, run.Examples,
		run.Datasets, run.Words, run.MeanPrecision, run.MeanErrorRate,
		run.ErrorMessage, now,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to finish run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("run not found").WithDetail(run.ID.String())
	}
	return nil
}

// GetByID loads a single run.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := r.conn.DB().QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run not found").WithDetail(id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load run")
	}
	return run, nil
}

// LatestSucceeded returns the most recently finished successful run of kind.
func (r *RunRepo) LatestSucceeded(ctx context.Context, kind RunKind) (*Run, error) {
	row := r.conn.DB().QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE kind = $1 AND status = $2
		ORDER BY finished_at DESC LIMIT 1`,
		string(kind), string(RunStatusSucceeded))
	run, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("no successful run").WithDetail(string(kind))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load latest run")
	}
	return run, nil
}

// List returns up to limit runs of kind, newest first.
func (r *RunRepo) List(ctx context.Context, kind RunKind, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE kind = $1 ORDER BY started_at DESC LIMIT $2`,
		string(kind), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate runs")
	}
	return runs, nil
}

// SaveEvaluationRecords writes all records of an evaluation run in one
// transaction.
func (r *RunRepo) SaveEvaluationRecords(ctx context.Context, runID uuid.UUID, records []EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	if err := insertRecords(ctx, tx, runID, records); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit evaluation records")
	}
	r.logger.Info("evaluation records saved",
		logging.String("run_id", runID.String()), logging.Int("count", len(records)))
	return nil
}

// ListEvaluationRecords returns the records of runID ordered by publication.
func (r *RunRepo) ListEvaluationRecords(ctx context.Context, runID uuid.UUID) ([]EvaluationRecord, error) {
	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT publication_id, y_true, y_pred, precision_score, error_rate
		FROM evaluation_records WHERE run_id = $1 ORDER BY publication_id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list evaluation records")
	}
	defer rows.Close()

	var out []EvaluationRecord
	for rows.Next() {
		var rec EvaluationRecord
		var yTrue, yPred []byte
		if err := rows.Scan(&rec.PublicationID, &yTrue, &yPred, &rec.Precision, &rec.ErrorRate); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan evaluation record")
		}
		if err := json.Unmarshal(yTrue, &rec.YTrue); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "corrupt y_true")
		}
		if err := json.Unmarshal(yPred, &rec.YPred); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "corrupt y_pred")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate evaluation records")
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func insertRecords(ctx context.Context, q queryExecutor, runID uuid.UUID, records []EvaluationRecord) error {
	const query = `INSERT INTO evaluation_records
		(run_id, publication_id, y_true, y_pred, precision_score, error_rate)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, rec := range records {
		yTrue, err := json.Marshal(rec.YTrue)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode y_true")
		}
		yPred, err := json.Marshal(rec.YPred)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode y_pred")
		}
		if _, err := q.ExecContext(ctx, query, runID, rec.PublicationID, yTrue, yPred, rec.Precision, rec.ErrorRate); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert evaluation record").
				WithDetail(rec.PublicationID)
		}
	}
	return nil
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var kind, status string
	var meta []byte
	var finished sql.NullTime
	if err := s.Scan(&run.ID, &kind, &status, &run.ModelKey, &run.Documents, &run.Examples,
		&run.Datasets, &run.Words, &run.MeanPrecision, &run.MeanErrorRate, &run.ErrorMessage,
		&meta, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &run.Metadata); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

func marshalMetadata(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run metadata")
	}
	return b, nil
}
