package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  model_id TEXT NOT NULL,
  universal_model_id TEXT NOT NULL,
  carbon_source_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  run_id TEXT NOT NULL,
  ready BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  pathways JSONB NOT NULL DEFAULT '[]'::jsonb,
  PRIMARY KEY (model_id, universal_model_id, carbon_source_id, product_id)
);
CREATE TABLE IF NOT EXISTS reference_items (
  kind TEXT NOT NULL,
  id TEXT NOT NULL,
  name TEXT NOT NULL,
  universal_models JSONB NOT NULL DEFAULT '[]'::jsonb,
  PRIMARY KEY (kind, id)
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

const pgKeyClause = `model_id = $1 AND universal_model_id = $2 AND carbon_source_id = $3 AND product_id = $4`

func (p *Postgres) GetRecord(ctx context.Context, key model.JobKey) (model.JobRecord, error) {
	rec := model.JobRecord{Key: key}
	var pathways []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT run_id, ready, created_at, updated_at, pathways FROM jobs WHERE `+pgKeyClause,
		keyArgs(key)...,
	).Scan(&rec.RunID, &rec.Ready, &rec.CreatedAt, &rec.UpdatedAt, &pathways)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.JobRecord{}, model.ErrNotFound
		}
		return model.JobRecord{}, err
	}
	if err := json.Unmarshal(pathways, &rec.Pathways); err != nil {
		return model.JobRecord{}, fmt.Errorf("decode pathways: %w", err)
	}
	if rec.Pathways == nil {
		rec.Pathways = []model.PathwayResult{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func (p *Postgres) CreateRecord(ctx context.Context, rec model.JobRecord) error {
	pathways, err := encodePathways(rec.Pathways)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO jobs (model_id, universal_model_id, carbon_source_id, product_id, run_id, ready, created_at, updated_at, pathways)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
		ON CONFLICT DO NOTHING
	`, rec.Key.ModelID, rec.Key.UniversalModelID, rec.Key.CarbonSourceID, rec.Key.ProductID,
		rec.RunID, rec.Ready, rec.CreatedAt, rec.UpdatedAt, pathways)
	if err != nil {
		return err
	}
	return affectedOr(res, model.ErrExists)
}

func (p *Postgres) AppendPathway(ctx context.Context, key model.JobKey, runID string, result model.PathwayResult, now time.Time) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode pathway: %w", err)
	}
	args := append(keyArgs(key), runID, string(raw), now.UTC())
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs
		SET pathways = pathways || jsonb_build_array($6::jsonb),
		    updated_at = $7
		WHERE `+pgKeyClause+` AND run_id = $5
	`, args...)
	if err != nil {
		return err
	}
	return affectedOr(res, model.ErrNotFound)
}

func (p *Postgres) SetReady(ctx context.Context, key model.JobKey, runID string, now time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE jobs SET ready = TRUE, updated_at = $6 WHERE `+pgKeyClause+` AND run_id = $5`,
		append(keyArgs(key), runID, now.UTC())...,
	)
	if err != nil {
		return err
	}
	return affectedOr(res, model.ErrNotFound)
}

func (p *Postgres) DeleteRecord(ctx context.Context, key model.JobKey, runID string) error {
	query := `DELETE FROM jobs WHERE ` + pgKeyClause
	args := keyArgs(key)
	if runID != "" {
		query += " AND run_id = $5"
		args = append(args, runID)
	}
	_, err := p.db.ExecContext(ctx, query, args...)
	return err
}

func (p *Postgres) IsAvailable(ctx context.Context, key model.JobKey) (bool, error) {
	var ok bool
	err := p.db.QueryRowContext(ctx, `
		SELECT
		  EXISTS (SELECT 1 FROM reference_items WHERE kind = 'universal_model' AND id = $2)
		  AND ($1::text = $2::text OR EXISTS (SELECT 1 FROM reference_items WHERE kind = 'model' AND id = $1))
		  AND EXISTS (SELECT 1 FROM reference_items WHERE kind = 'carbon_source' AND id = $3)
		  AND EXISTS (SELECT 1 FROM reference_items
		              WHERE kind = 'product' AND id = $4 AND universal_models @> jsonb_build_array($2::text))
	`, keyArgs(key)...).Scan(&ok)
	return ok, err
}

func (p *Postgres) UpsertReferences(ctx context.Context, kind model.ReferenceKind, items []model.ReferenceItem) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		universal, err := encodeStrings(item.UniversalModels)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reference_items (kind, id, name, universal_models) VALUES ($1, $2, $3, $4::jsonb)
			ON CONFLICT (kind, id) DO UPDATE SET name = EXCLUDED.name, universal_models = EXCLUDED.universal_models
		`, string(kind), item.ID, item.Name, universal); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListReferences(ctx context.Context, kind model.ReferenceKind, universalModelID string) ([]model.ReferenceItem, error) {
	query := `SELECT id, name, universal_models FROM reference_items WHERE kind = $1`
	args := []any{string(kind)}
	if universalModelID != "" {
		query += ` AND universal_models @> jsonb_build_array($2::text)`
		args = append(args, universalModelID)
	}
	query += " ORDER BY id"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ReferenceItem{}
	for rows.Next() {
		var (
			item      model.ReferenceItem
			universal []byte
		)
		if err := rows.Scan(&item.ID, &item.Name, &universal); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(universal, &item.UniversalModels); err != nil {
			return nil, fmt.Errorf("decode universal models of %s: %w", item.ID, err)
		}
		if len(item.UniversalModels) == 0 {
			item.UniversalModels = nil
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
