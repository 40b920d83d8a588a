package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/artasov/speechd/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyDSN(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestSendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := New("sqlite://" + path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	now := time.Now()
	require.NoError(t, s.Send(context.Background(), history.Event{
		Op:         "install",
		OK:         true,
		Phase:      "running",
		StartedAt:  now.Add(-30 * time.Second),
		FinishedAt: now,
	}))
	require.NoError(t, s.Send(context.Background(), history.Event{
		Op:         "start",
		OK:         false,
		Error:      "local server did not start in time",
		Phase:      "error",
		StartedAt:  now,
		FinishedAt: now.Add(2 * time.Minute),
	}))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM operation_history`).Scan(&count))
	assert.Equal(t, 2, count)

	var op, phase string
	var ok bool
	var errStr *string
	row := s.db.QueryRow(`SELECT op, ok, error, phase FROM operation_history WHERE op = 'start'`)
	require.NoError(t, row.Scan(&op, &ok, &errStr, &phase))
	assert.False(t, ok)
	require.NotNil(t, errStr)
	assert.Equal(t, "local server did not start in time", *errStr)
	assert.Equal(t, "error", phase)

	row = s.db.QueryRow(`SELECT error FROM operation_history WHERE op = 'install'`)
	require.NoError(t, row.Scan(&errStr))
	assert.Nil(t, errStr, "success rows store NULL error")
}

func TestInMemory(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.NoError(t, s.Send(context.Background(), history.Event{
		Op: "stop", OK: true, Phase: "idle",
		StartedAt: time.Now(), FinishedAt: time.Now(),
	}))
}
