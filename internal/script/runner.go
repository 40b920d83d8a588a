package script

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/artasov/speechd/internal/env"
	"github.com/artasov/speechd/internal/logger"
	"github.com/artasov/speechd/internal/metrics"
	"github.com/artasov/speechd/internal/status"
)

// ExitError reports a control script that exited non-zero.
type ExitError struct {
	Label string
	Err   error
}

func (e *ExitError) Error() string { return e.Label + " script failed" }

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes control scripts and relays their combined output into the
// status store line by line. Exactly one script runs at a time per
// orchestration path; the orchestrator's lock guarantees that.
type Runner struct {
	store *status.Store
	log   logger.Config
}

// NewRunner creates a runner that reports into store and captures script
// output per the logging config.
func NewRunner(store *status.Store, log logger.Config) *Runner {
	return &Runner{store: store, log: log}
}

// Run spawns the named command in dir with the OS environment plus
// overrides. Stdout and stderr are drained by independent readers feeding
// one consumer; within each stream order is preserved. Run returns only
// after both readers finished and the process was reaped, so no status
// update from this invocation arrives after the result. The child is never
// force-killed; control scripts are short-lived and exit on their own.
func (r *Runner) Run(dir string, overrides []string, label string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env.Merge(overrides)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s script stdout pipe: %w", label, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%s script stderr pipe: %w", label, err)
	}

	capture := r.log.Writer(label)
	if capture != nil {
		defer func() { _ = capture.Close() }()
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s script: %w", label, err)
	}
	slog.Debug("control script started", "label", label, "pid", cmd.Process.Pid)

	lines := make(chan string, 64)
	var readers sync.WaitGroup
	readers.Add(2)
	go readLines(stdout, lines, &readers)
	go readLines(stderr, lines, &readers)
	go func() {
		readers.Wait()
		close(lines)
	}()

	for line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if capture != nil {
			_, _ = capture.Write([]byte(trimmed + "\n"))
		}
		metrics.IncScriptLine(label)
		r.store.Update(func(st *status.Status) {
			st.LogLine = trimmed
			if st.Phase.InProgress() {
				st.Message = trimmed
			}
		})
	}

	if err := cmd.Wait(); err != nil {
		slog.Warn("control script failed", "label", label, "error", err)
		return &ExitError{Label: label, Err: err}
	}
	return nil
}

func readLines(rd io.Reader, out chan<- string, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		out <- sc.Text()
	}
}
