package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemory(), "")
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runStoreSuite(t, s, "")
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	seedReferences(t, s, "", "u")
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	items, err := s.ListReferences(context.Background(), "product", "u")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("PATHWAYS_POSTGRES_DSN_INTEGRATION")
	if dsn == "" {
		t.Skip("set PATHWAYS_POSTGRES_DSN_INTEGRATION to run Postgres integration tests")
	}
	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runStoreSuite(t, s, "it"+strconv.FormatInt(time.Now().UnixNano(), 10)+"-")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mongodb", "")
	assert.ErrorContains(t, err, "unknown store driver")
}
