// Package store persists prediction job records and the reference lists that
// job keys are validated against.
//
// Every backend is safe for concurrent use and performs appends and
// insert-if-absent atomically. Writes made on behalf of a background run are
// guarded by the run id, so a superseded run can never change the record of
// the run that replaced it.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// Jobs is the job record half of a Store.
type Jobs interface {
	GetRecord(ctx context.Context, key model.JobKey) (model.JobRecord, error)
	// CreateRecord inserts rec unless a record for rec.Key exists, in which
	// case it returns model.ErrExists.
	CreateRecord(ctx context.Context, rec model.JobRecord) error
	// AppendPathway pushes result onto the record of (key, runID) and sets its
	// update time to now. It returns model.ErrNotFound if no such record
	// exists.
	AppendPathway(ctx context.Context, key model.JobKey, runID string, result model.PathwayResult, now time.Time) error
	SetReady(ctx context.Context, key model.JobKey, runID string, now time.Time) error
	// DeleteRecord removes the record of (key, runID). An empty runID removes
	// whatever record holds key.
	DeleteRecord(ctx context.Context, key model.JobKey, runID string) error
}

// References is the reference list half of a Store.
type References interface {
	IsAvailable(ctx context.Context, key model.JobKey) (bool, error)
	UpsertReferences(ctx context.Context, kind model.ReferenceKind, items []model.ReferenceItem) error
	// ListReferences lists one reference kind ordered by id. A non-empty
	// universalModelID keeps only items listing that universal model.
	ListReferences(ctx context.Context, kind model.ReferenceKind, universalModelID string) ([]model.ReferenceItem, error)
}

type Store interface {
	Jobs
	References
	Close() error
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open opens the store for driver. dsn is a file path for SQLite and a
// connection string for Postgres; it is ignored for the memory store.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
