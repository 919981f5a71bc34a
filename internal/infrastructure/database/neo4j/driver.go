package neo4j

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// Result abstracts neo4j.ResultWithContext.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// Transaction abstracts neo4j.ManagedTransaction.
type Transaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// TransactionWork is a unit of work run inside a managed transaction.
type TransactionWork func(tx Transaction) (any, error)

// DriverInterface is what graph repositories depend on.
type DriverInterface interface {
	ExecuteRead(ctx context.Context, work TransactionWork) (any, error)
	ExecuteWrite(ctx context.Context, work TransactionWork) (any, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// internalSession abstracts neo4j.SessionWithContext
type internalSession interface {
	ExecuteRead(ctx context.Context, work TransactionWork) (any, error)
	ExecuteWrite(ctx context.Context, work TransactionWork) (any, error)
	Close(ctx context.Context) error
}

// internalDriver abstracts neo4j.DriverWithContext
type internalDriver interface {
	VerifyConnectivity(ctx context.Context) error
	NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession
	Close(ctx context.Context) error
}

type stdResult struct {
	res neo4j.ResultWithContext
}

func (r *stdResult) Next(ctx context.Context) bool { return r.res.Next(ctx) }
func (r *stdResult) Record() *neo4j.Record         { return r.res.Record() }
func (r *stdResult) Err() error                    { return r.res.Err() }
func (r *stdResult) Consume(ctx context.Context) (neo4j.ResultSummary, error) {
	return r.res.Consume(ctx)
}

type stdTransaction struct {
	tx neo4j.ManagedTransaction
}

func (t *stdTransaction) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &stdResult{res: res}, nil
}

type stdSession struct {
	s neo4j.SessionWithContext
}

func (s *stdSession) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	return s.s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&stdTransaction{tx: tx})
	})
}

func (s *stdSession) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	return s.s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&stdTransaction{tx: tx})
	})
}

func (s *stdSession) Close(ctx context.Context) error { return s.s.Close(ctx) }

type stdDriver struct {
	d neo4j.DriverWithContext
}

func (d *stdDriver) VerifyConnectivity(ctx context.Context) error { return d.d.VerifyConnectivity(ctx) }

func (d *stdDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession {
	return &stdSession{s: d.d.NewSession(ctx, config)}
}

func (d *stdDriver) Close(ctx context.Context) error { return d.d.Close(ctx) }

// Driver wraps the Neo4j driver with database selection, logging and error
// codes.
type Driver struct {
	driver internalDriver
	cfg    config.Neo4jConfig
	logger logging.Logger
	once   sync.Once
}

// NewDriver connects to the citation graph and verifies connectivity.
func NewDriver(cfg config.Neo4jConfig, log logging.Logger) (*Driver, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")

	drv, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		} else {
			c.MaxConnectionPoolSize = 50
		}
		c.MaxConnectionLifetime = time.Hour
		if cfg.ConnectionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		} else {
			c.ConnectionAcquisitionTimeout = 60 * time.Second
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create neo4j driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(context.Background())
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to neo4j")
	}

	log.Info("Connected to Neo4j", logging.String("uri", cfg.URI), logging.String("database", cfg.Database))
	return newDriver(&stdDriver{d: drv}, cfg, log), nil
}

func newDriver(d internalDriver, cfg config.Neo4jConfig, log logging.Logger) *Driver {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Driver{driver: d, cfg: cfg, logger: log}
}

func (d *Driver) session(ctx context.Context, mode neo4j.AccessMode) internalSession {
	db := d.cfg.Database
	if db == "" {
		db = "neo4j"
	}
	return d.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: db, AccessMode: mode})
}

func (d *Driver) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	s := d.session(ctx, neo4j.AccessModeRead)
	defer s.Close(ctx)

	res, err := s.ExecuteRead(ctx, work)
	if err != nil {
		d.logger.Error("Neo4j read transaction failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "neo4j read failed")
	}
	return res, nil
}

func (d *Driver) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	s := d.session(ctx, neo4j.AccessModeWrite)
	defer s.Close(ctx)

	res, err := s.ExecuteWrite(ctx, work)
	if err != nil {
		d.logger.Error("Neo4j write transaction failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "neo4j write failed")
	}
	return res, nil
}

// HealthCheck verifies connectivity and runs a trivial read.
func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.driver.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "neo4j connectivity check failed")
	}
	_, err := d.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, "RETURN 1 AS health", nil)
		if err != nil {
			return nil, err
		}
		return ExtractSingleRecord(ctx, res, func(r *neo4j.Record) (any, error) { return r.Values[0], nil })
	})
	return err
}

// Close closes the driver once.
func (d *Driver) Close(ctx context.Context) error {
	var err error
	d.once.Do(func() {
		err = d.driver.Close(ctx)
		if err == nil {
			d.logger.Info("Closed Neo4j driver")
		} else {
			d.logger.Error("Failed to close Neo4j driver", logging.Err(err))
		}
	})
	return err
}

// ExtractSingleRecord maps the first record of result, or returns NotFound.
func ExtractSingleRecord[T any](ctx context.Context, result Result, mapper func(*neo4j.Record) (T, error)) (T, error) {
	var zero T
	if result.Next(ctx) {
		return mapper(result.Record())
	}
	if err := result.Err(); err != nil {
		return zero, err
	}
	return zero, errors.New(errors.ErrCodeNotFound, "no record found")
}

// CollectRecords maps every record of result.
func CollectRecords[T any](ctx context.Context, result Result, mapper func(*neo4j.Record) (T, error)) ([]T, error) {
	var items []T
	for result.Next(ctx) {
		item, err := mapper(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
