package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  model_id TEXT NOT NULL,
  universal_model_id TEXT NOT NULL,
  carbon_source_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  run_id TEXT NOT NULL,
  ready INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  pathways TEXT NOT NULL DEFAULT '[]',
  PRIMARY KEY (model_id, universal_model_id, carbon_source_id, product_id)
);
CREATE TABLE IF NOT EXISTS reference_items (
  kind TEXT NOT NULL,
  id TEXT NOT NULL,
  name TEXT NOT NULL,
  universal_models TEXT NOT NULL DEFAULT '[]',
  PRIMARY KEY (kind, id)
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

const keyClause = `model_id = ? AND universal_model_id = ? AND carbon_source_id = ? AND product_id = ?`

func keyArgs(key model.JobKey) []any {
	return []any{key.ModelID, key.UniversalModelID, key.CarbonSourceID, key.ProductID}
}

func (s *SQLite) GetRecord(ctx context.Context, key model.JobKey) (model.JobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, ready, created_at, updated_at, pathways FROM jobs WHERE `+keyClause,
		keyArgs(key)...,
	)
	var (
		runID, pathways      string
		ready                bool
		createdMs, updatedMs int64
	)
	if err := row.Scan(&runID, &ready, &createdMs, &updatedMs, &pathways); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.JobRecord{}, model.ErrNotFound
		}
		return model.JobRecord{}, err
	}
	rec := model.JobRecord{
		Key:       key,
		RunID:     runID,
		Ready:     ready,
		CreatedAt: time.UnixMilli(createdMs).UTC(),
		UpdatedAt: time.UnixMilli(updatedMs).UTC(),
	}
	if err := json.Unmarshal([]byte(pathways), &rec.Pathways); err != nil {
		return model.JobRecord{}, fmt.Errorf("decode pathways: %w", err)
	}
	if rec.Pathways == nil {
		rec.Pathways = []model.PathwayResult{}
	}
	return rec, nil
}

func (s *SQLite) CreateRecord(ctx context.Context, rec model.JobRecord) error {
	pathways, err := encodePathways(rec.Pathways)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (model_id, universal_model_id, carbon_source_id, product_id, run_id, ready, created_at, updated_at, pathways)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT DO NOTHING`,
		rec.Key.ModelID,
		rec.Key.UniversalModelID,
		rec.Key.CarbonSourceID,
		rec.Key.ProductID,
		rec.RunID,
		rec.Ready,
		rec.CreatedAt.UnixMilli(),
		rec.UpdatedAt.UnixMilli(),
		pathways,
	)
	if err != nil {
		return err
	}
	return affectedOr(res, model.ErrExists)
}

func (s *SQLite) AppendPathway(ctx context.Context, key model.JobKey, runID string, result model.PathwayResult, now time.Time) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode pathway: %w", err)
	}
	args := append([]any{string(raw), now.UnixMilli()}, keyArgs(key)...)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
         SET pathways = json_insert(pathways, '$[#]', json(?)),
             updated_at = ?
         WHERE `+keyClause+` AND run_id = ?`,
		append(args, runID)...,
	)
	if err != nil {
		return err
	}
	return affectedOr(res, model.ErrNotFound)
}

func (s *SQLite) SetReady(ctx context.Context, key model.JobKey, runID string, now time.Time) error {
	args := append([]any{now.UnixMilli()}, keyArgs(key)...)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET ready = 1, updated_at = ? WHERE `+keyClause+` AND run_id = ?`,
		append(args, runID)...,
	)
	if err != nil {
		return err
	}
	return affectedOr(res, model.ErrNotFound)
}

func (s *SQLite) DeleteRecord(ctx context.Context, key model.JobKey, runID string) error {
	query := `DELETE FROM jobs WHERE ` + keyClause
	args := keyArgs(key)
	if runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLite) IsAvailable(ctx context.Context, key model.JobKey) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT
  EXISTS (SELECT 1 FROM reference_items WHERE kind = 'universal_model' AND id = ?)
  AND (? = ? OR EXISTS (SELECT 1 FROM reference_items WHERE kind = 'model' AND id = ?))
  AND EXISTS (SELECT 1 FROM reference_items WHERE kind = 'carbon_source' AND id = ?)
  AND EXISTS (SELECT 1 FROM reference_items AS r, json_each(r.universal_models) AS u
              WHERE r.kind = 'product' AND r.id = ? AND u.value = ?)`,
		key.UniversalModelID,
		key.ModelID, key.UniversalModelID, key.ModelID,
		key.CarbonSourceID,
		key.ProductID, key.UniversalModelID,
	).Scan(&ok)
	return ok, err
}

func (s *SQLite) UpsertReferences(ctx context.Context, kind model.ReferenceKind, items []model.ReferenceItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		universal, err := encodeStrings(item.UniversalModels)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reference_items (kind, id, name, universal_models) VALUES (?, ?, ?, ?)
             ON CONFLICT (kind, id) DO UPDATE SET name = excluded.name, universal_models = excluded.universal_models`,
			string(kind), item.ID, item.Name, universal,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListReferences(ctx context.Context, kind model.ReferenceKind, universalModelID string) ([]model.ReferenceItem, error) {
	query := `SELECT id, name, universal_models FROM reference_items WHERE kind = ?`
	args := []any{string(kind)}
	if universalModelID != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(universal_models) WHERE value = ?)`
		args = append(args, universalModelID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ReferenceItem{}
	for rows.Next() {
		var (
			item      model.ReferenceItem
			universal string
		)
		if err := rows.Scan(&item.ID, &item.Name, &universal); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(universal), &item.UniversalModels); err != nil {
			return nil, fmt.Errorf("decode universal models of %s: %w", item.ID, err)
		}
		if len(item.UniversalModels) == 0 {
			item.UniversalModels = nil
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func affectedOr(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}

func encodePathways(pathways []model.PathwayResult) (string, error) {
	if pathways == nil {
		pathways = []model.PathwayResult{}
	}
	raw, err := json.Marshal(pathways)
	if err != nil {
		return "", fmt.Errorf("encode pathways: %w", err)
	}
	return string(raw), nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	return string(raw), err
}
