//go:build !windows

package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/artasov/speechd/internal/logger"
	"github.com/artasov/speechd/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunRelaysLinesIntoStatus(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "start-unix.sh", "echo loading model\necho ready\n")

	st := status.NewStore(status.New("init"))
	st.Update(func(s *status.Status) { s.Phase = status.PhaseStarting })
	ch, cancel := st.Subscribe(16)
	defer cancel()

	r := NewRunner(st, logger.Config{})
	require.NoError(t, r.Run(dir, nil, "start", "bash", path))

	snap := st.Snapshot()
	assert.Equal(t, "ready", snap.LogLine)
	// Starting is an in-progress phase, so the message mirrors the stream.
	assert.Equal(t, "ready", snap.Message)

	var seen []string
	for len(ch) > 0 {
		seen = append(seen, (<-ch).LogLine)
	}
	assert.Contains(t, seen, "loading model")
	assert.Contains(t, seen, "ready")
}

func TestRunKeepsMessageOutsideProgressPhases(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "stop-unix.sh", "echo shutting down\n")

	st := status.NewStore(status.New("init"))
	st.Update(func(s *status.Status) {
		s.Phase = status.PhaseRunning
		s.Message = "Server started."
	})

	r := NewRunner(st, logger.Config{})
	require.NoError(t, r.Run(dir, nil, "stop", "bash", path))

	snap := st.Snapshot()
	assert.Equal(t, "shutting down", snap.LogLine)
	assert.Equal(t, "Server started.", snap.Message)
}

func TestRunSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "start-unix.sh", "echo first\necho\necho '   '\n")

	st := status.NewStore(status.New("init"))
	r := NewRunner(st, logger.Config{})
	require.NoError(t, r.Run(dir, nil, "start", "bash", path))

	assert.Equal(t, "first", st.Snapshot().LogLine)
}

func TestRunMergesStderr(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "start-unix.sh", "echo oops >&2\n")

	st := status.NewStore(status.New("init"))
	r := NewRunner(st, logger.Config{})
	require.NoError(t, r.Run(dir, nil, "start", "bash", path))

	assert.Equal(t, "oops", st.Snapshot().LogLine)
}

func TestRunNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "start-unix.sh", "echo dying\nexit 3\n")

	st := status.NewStore(status.New("init"))
	r := NewRunner(st, logger.Config{})
	err := r.Run(dir, nil, "start", "bash", path)
	require.Error(t, err)

	var ee *ExitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "start", ee.Label)
	assert.Equal(t, "start script failed", ee.Error())
	// Output arriving before the failure was still drained.
	assert.Equal(t, "dying", st.Snapshot().LogLine)
}

func TestRunSpawnFailure(t *testing.T) {
	st := status.NewStore(status.New("init"))
	r := NewRunner(st, logger.Config{})
	err := r.Run(t.TempDir(), nil, "start", "/nonexistent/interpreter")
	require.Error(t, err)
	var ee *ExitError
	assert.False(t, errors.As(err, &ee), "spawn failure is not a script exit failure")
}

func TestRunPassesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "start-unix.sh", `echo "pause=$PAUSE_SECONDS port=$FAST_FAST_WHISPER_PORT"`)

	st := status.NewStore(status.New("init"))
	r := NewRunner(st, logger.Config{})
	require.NoError(t, r.Run(dir, []string{"PAUSE_SECONDS=0", "FAST_FAST_WHISPER_PORT=8868"}, "start", "bash", path))

	assert.Equal(t, "pause=0 port=8868", st.Snapshot().LogLine)
}

func TestRunWritesCaptureLog(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	path := writeScript(t, dir, "start-unix.sh", "echo captured line\n")

	st := status.NewStore(status.New("init"))
	r := NewRunner(st, logger.Config{Dir: logDir})
	require.NoError(t, r.Run(dir, nil, "start", "bash", path))

	b, err := os.ReadFile(filepath.Join(logDir, "start.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "captured line")
}

func TestPlatformCommands(t *testing.T) {
	name, args := StartCommand("/srv/fast-fast-whisper")
	assert.Equal(t, "bash", name)
	require.Len(t, args, 1)
	assert.Equal(t, "/srv/fast-fast-whisper/start-unix.sh", args[0])

	name, args = StopCommand("/srv/fast-fast-whisper")
	assert.Equal(t, "bash", name)
	assert.Equal(t, "/srv/fast-fast-whisper/stop-unix.sh", args[0])

	assert.Equal(t, []string{"start-unix.sh", "stop-unix.sh"}, ControlScripts())
}
