// Package repositories holds the Neo4j citation graph linking publications to
// the datasets they cite as a data source.
package repositories

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	driver "github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// EdgeSource tells ground-truth edges from model predictions.
type EdgeSource string

const (
	EdgeSourceLabel     EdgeSource = "label"
	EdgeSourcePredicted EdgeSource = "predicted"
)

// DatasetNode is a Dataset vertex.
type DatasetNode struct {
	ID    string
	Title string
}

// PredictedEdge is one ranked prediction for a publication.
type PredictedEdge struct {
	DatasetID string
	Score     float64
	Rank      int
}

// CoCitation counts publications citing both the queried dataset and DatasetID.
type CoCitation struct {
	DatasetID string
	Count     int64
}

// CitationGraph stores (:Publication)-[:CITES_AS_DATA_SOURCE]->(:Dataset).
type CitationGraph struct {
	driver driver.DriverInterface
	log    logging.Logger
}

func NewCitationGraph(d driver.DriverInterface, log logging.Logger) *CitationGraph {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CitationGraph{driver: d, log: log}
}

var schemaStatements = []string{
	`CREATE CONSTRAINT publication_id IF NOT EXISTS FOR (p:Publication) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT dataset_id IF NOT EXISTS FOR (d:Dataset) REQUIRE d.id IS UNIQUE`,
}

// EnsureSchema creates the uniqueness constraints.
func (g *CitationGraph) EnsureSchema(ctx context.Context) error {
	_, err := g.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		for _, stmt := range schemaStatements {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// UpsertDatasets merges Dataset vertices and refreshes their titles.
func (g *CitationGraph) UpsertDatasets(ctx context.Context, datasets []DatasetNode) error {
	if len(datasets) == 0 {
		return nil
	}
	query := `
		UNWIND $batch AS row
		MERGE (d:Dataset {id: row.id})
		ON CREATE SET d.created_at = datetime()
		SET d.title = row.title
	`
	batch := make([]map[string]any, 0, len(datasets))
	for _, d := range datasets {
		batch = append(batch, map[string]any{"id": d.ID, "title": d.Title})
	}
	_, err := g.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"batch": batch})
		return nil, err
	})
	return err
}

// RecordGroundTruth links a publication to its labeled datasets. Existing
// label edges are kept; MERGE makes the call idempotent.
func (g *CitationGraph) RecordGroundTruth(ctx context.Context, publicationID string, datasetIDs []string) error {
	if publicationID == "" {
		return errors.NewInvalidInput("publication id is required")
	}
	query := `
		MERGE (p:Publication {id: $pubId})
		WITH p
		UNWIND $datasetIds AS dsId
		MERGE (d:Dataset {id: dsId})
		MERGE (p)-[r:CITES_AS_DATA_SOURCE {source: $source}]->(d)
		ON CREATE SET r.created_at = datetime()
	`
	params := map[string]any{
		"pubId":      publicationID,
		"datasetIds": datasetIDs,
		"source":     string(EdgeSourceLabel),
	}
	_, err := g.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

// RecordPredictions replaces the predicted edges of a publication with edges.
func (g *CitationGraph) RecordPredictions(ctx context.Context, publicationID, modelKey string, edges []PredictedEdge) error {
	if publicationID == "" {
		return errors.NewInvalidInput("publication id is required")
	}
	clearQuery := `
		MATCH (:Publication {id: $pubId})-[r:CITES_AS_DATA_SOURCE {source: $source}]->(:Dataset)
		DELETE r
	`
	create := `
		MERGE (p:Publication {id: $pubId})
		WITH p
		UNWIND $edges AS e
		MERGE (d:Dataset {id: e.dataset_id})
		CREATE (p)-[:CITES_AS_DATA_SOURCE {source: $source, score: e.score, rank: e.rank, model: $model, predicted_at: $at}]->(d)
	`
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{"dataset_id": e.DatasetID, "score": e.Score, "rank": int64(e.Rank)})
	}
	params := map[string]any{
		"pubId":  publicationID,
		"source": string(EdgeSourcePredicted),
		"edges":  rows,
		"model":  modelKey,
		"at":     time.Now().UTC().Format(time.RFC3339),
	}

	_, err := g.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		if _, err := tx.Run(ctx, clearQuery, params); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, create, params)
		return nil, err
	})
	if err == nil {
		g.log.Debug("predicted edges recorded",
			logging.String("publication_id", publicationID),
			logging.Int("edges", len(edges)))
	}
	return err
}

// DatasetsFor lists datasets linked to a publication by edges of source.
// Predicted edges come back in rank order, labels by id.
func (g *CitationGraph) DatasetsFor(ctx context.Context, publicationID string, source EdgeSource) ([]string, error) {
	query := `
		MATCH (:Publication {id: $pubId})-[r:CITES_AS_DATA_SOURCE {source: $source}]->(d:Dataset)
		RETURN d.id AS id
		ORDER BY coalesce(r.rank, 0), d.id
	`
	params := map[string]any{"pubId": publicationID, "source": string(source)}
	res, err := g.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, result, stringAt(0))
	})
	if err != nil {
		return nil, err
	}
	ids, _ := res.([]string)
	return ids, nil
}

// PublicationsCiting lists publications with a label edge to datasetID.
func (g *CitationGraph) PublicationsCiting(ctx context.Context, datasetID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		MATCH (p:Publication)-[:CITES_AS_DATA_SOURCE {source: $source}]->(:Dataset {id: $dsId})
		RETURN p.id AS id
		ORDER BY p.id
		LIMIT $limit
	`
	params := map[string]any{"dsId": datasetID, "source": string(EdgeSourceLabel), "limit": int64(limit)}
	res, err := g.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, result, stringAt(0))
	})
	if err != nil {
		return nil, err
	}
	ids, _ := res.([]string)
	return ids, nil
}

// CoCitedDatasets returns datasets most often labeled together with datasetID.
func (g *CitationGraph) CoCitedDatasets(ctx context.Context, datasetID string, limit int) ([]CoCitation, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		MATCH (:Dataset {id: $dsId})<-[:CITES_AS_DATA_SOURCE {source: $source}]-(p:Publication)
		      -[:CITES_AS_DATA_SOURCE {source: $source}]->(other:Dataset)
		WHERE other.id <> $dsId
		RETURN other.id AS id, count(DISTINCT p) AS shared
		ORDER BY shared DESC, id
		LIMIT $limit
	`
	params := map[string]any{"dsId": datasetID, "source": string(EdgeSourceLabel), "limit": int64(limit)}
	res, err := g.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, result, func(r *neo4j.Record) (CoCitation, error) {
			id, err := stringAt(0)(r)
			if err != nil {
				return CoCitation{}, err
			}
			n, ok := r.Values[1].(int64)
			if !ok {
				return CoCitation{}, errors.New(errors.ErrCodeSerialization, "unexpected count type")
			}
			return CoCitation{DatasetID: id, Count: n}, nil
		})
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.([]CoCitation)
	return out, nil
}

func stringAt(i int) func(*neo4j.Record) (string, error) {
	return func(r *neo4j.Record) (string, error) {
		if r == nil || i >= len(r.Values) {
			return "", errors.New(errors.ErrCodeSerialization, "record has no value at index")
		}
		s, ok := r.Values[i].(string)
		if !ok {
			return "", errors.New(errors.ErrCodeSerialization, "unexpected value type")
		}
		return s, nil
	}
}
