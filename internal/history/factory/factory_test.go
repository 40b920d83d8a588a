package factory

import (
	"path/filepath"
	"testing"

	"github.com/artasov/speechd/internal/history/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSinkFromDSNEmpty(t *testing.T) {
	_, err := NewSinkFromDSN("  ")
	require.Error(t, err)
}

func TestNewSinkFromDSNUnsupported(t *testing.T) {
	_, err := NewSinkFromDSN("redis://localhost:6379")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DSN format")
}

func TestNewSinkFromDSNSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.db")

	s, err := NewSinkFromDSN("sqlite://" + path)
	require.NoError(t, err)
	require.IsType(t, &sqlite.Sink{}, s)
	require.NoError(t, s.Close())

	// A bare path defaults to SQLite too.
	s, err = NewSinkFromDSN(path)
	require.NoError(t, err)
	require.IsType(t, &sqlite.Sink{}, s)
	require.NoError(t, s.Close())
}
