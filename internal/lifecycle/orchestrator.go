package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artasov/speechd/internal/config"
	"github.com/artasov/speechd/internal/health"
	"github.com/artasov/speechd/internal/history"
	"github.com/artasov/speechd/internal/metrics"
	"github.com/artasov/speechd/internal/provision"
	"github.com/artasov/speechd/internal/script"
	"github.com/artasov/speechd/internal/status"
)

// Orchestrator is the only externally callable lifecycle surface. At most
// one lifecycle operation runs at a time process-wide; a second caller
// blocks until the first completes. Each operation is a fixed sequence of
// provisioning, scripting, and probing, ending in a consistent status.
type Orchestrator struct {
	mu     sync.Mutex
	cfg    *config.Config
	store  *status.Store
	prov   *provision.Provisioner
	runner *script.Runner
	prober *health.Prober

	sinkMu sync.Mutex
	sinks  []history.Sink
}

// New builds an orchestrator from the config. Installed state is
// recomputed from disk, never assumed from a previous run.
func New(cfg *config.Config) *Orchestrator {
	store := status.NewStore(status.New("Local server is not installed."))
	prov := provision.New(store, cfg.InstallRoot, cfg.RepoURL, cfg.ArchiveURL, cfg.RepoName)
	if prov.Installed() {
		store.Update(func(st *status.Status) {
			st.Installed = true
			st.Phase = status.PhaseIdle
			st.InstallDir = prov.RepoDir()
			st.Message = "Server is stopped."
		})
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		prov:   prov,
		runner: script.NewRunner(store, cfg.Log),
		prober: health.New(cfg.HealthURL(), health.Options{
			Interval:     cfg.HealthInterval,
			UpTimeout:    cfg.HealthTimeout,
			DownTimeout:  cfg.StopTimeout,
			ProbeTimeout: cfg.ProbeTimeout,
		}),
	}
}

// Store exposes the status store for observers (pull snapshots and push
// subscriptions).
func (o *Orchestrator) Store() *status.Store { return o.store }

// SetSinks configures the operation audit sinks. Passing none clears them.
func (o *Orchestrator) SetSinks(sinks ...history.Sink) {
	o.sinkMu.Lock()
	o.sinks = append([]history.Sink(nil), sinks...)
	o.sinkMu.Unlock()
}

// CloseSinks closes all configured sinks.
func (o *Orchestrator) CloseSinks() {
	o.sinkMu.Lock()
	sinks := o.sinks
	o.sinks = nil
	o.sinkMu.Unlock()
	for _, s := range sinks {
		_ = s.Close()
	}
}

// Status returns the current status snapshot.
func (o *Orchestrator) Status() status.Status { return o.store.Snapshot() }

// Install provisions the checkout if needed and starts the server.
func (o *Orchestrator) Install(ctx context.Context) (status.Status, error) {
	return o.execute(ctx, "install", func(ctx context.Context) (status.Status, error) {
		if err := o.prov.Ensure(ctx, false); err != nil {
			return status.Status{}, err
		}
		return o.startServer(ctx, "install")
	})
}

// StartExisting starts the server, provisioning first only when no
// checkout exists yet.
func (o *Orchestrator) StartExisting(ctx context.Context) (status.Status, error) {
	return o.execute(ctx, "start", func(ctx context.Context) (status.Status, error) {
		if !o.prov.Installed() {
			if err := o.prov.Ensure(ctx, false); err != nil {
				return status.Status{}, err
			}
		}
		return o.startServer(ctx, "start")
	})
}

// Restart stops the server best-effort and starts it again.
func (o *Orchestrator) Restart(ctx context.Context) (status.Status, error) {
	return o.execute(ctx, "restart", func(ctx context.Context) (status.Status, error) {
		_ = o.stopServer(ctx)
		return o.startServer(ctx, "restart")
	})
}

// Reinstall wipes the checkout, fetches it fresh, and starts the server.
func (o *Orchestrator) Reinstall(ctx context.Context) (status.Status, error) {
	return o.execute(ctx, "reinstall", func(ctx context.Context) (status.Status, error) {
		if err := o.prov.Ensure(ctx, true); err != nil {
			return status.Status{}, err
		}
		return o.startServer(ctx, "reinstall")
	})
}

// Stop stops the server and settles the status in Idle.
func (o *Orchestrator) Stop(ctx context.Context) (status.Status, error) {
	return o.execute(ctx, "stop", func(ctx context.Context) (status.Status, error) {
		if err := o.stopServer(ctx); err != nil {
			return status.Status{}, err
		}
		snap := o.store.Update(func(st *status.Status) {
			st.Phase = status.PhaseIdle
			st.Running = false
			st.Message = "Server is stopped."
		})
		return snap, nil
	})
}

// CheckHealth performs a single probe and reconciles Running with the
// observed reachability. It is not a lifecycle operation: it takes no lock
// and never moves the status into the error phase.
func (o *Orchestrator) CheckHealth(ctx context.Context) status.Status {
	healthy := o.prober.Check(ctx)
	metrics.IncProbe(healthy)
	metrics.SetServerUp(healthy)
	return o.store.Update(func(st *status.Status) {
		if healthy {
			st.Running = true
			if !st.Phase.InProgress() {
				st.Phase = status.PhaseRunning
				st.Error = ""
				st.Message = "Server is running."
			}
			return
		}
		st.Running = false
		if st.Phase == status.PhaseRunning {
			st.Phase = status.PhaseIdle
			st.Message = "Server is stopped."
		}
	})
}

// execute serializes the operation, maps any failure into the error phase,
// and records the outcome to the audit sinks and metrics. The status store
// and the returned error always agree on failure.
func (o *Orchestrator) execute(ctx context.Context, op string, fn func(context.Context) (status.Status, error)) (status.Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	started := time.Now()
	snap, err := fn(ctx)
	if err != nil {
		slog.Error("lifecycle operation failed", "op", op, "error", err)
		snap = o.store.Update(func(st *status.Status) {
			st.Phase = status.PhaseError
			st.Error = err.Error()
			st.Message = err.Error()
		})
	} else {
		slog.Info("lifecycle operation completed", "op", op, "phase", snap.Phase)
	}
	finished := time.Now()

	metrics.IncOperation(op, err == nil)
	metrics.ObserveOperationDuration(op, finished.Sub(started).Seconds())
	o.record(history.Event{
		Op:         op,
		OK:         err == nil,
		Error:      snap.Error,
		Phase:      snap.Phase.String(),
		StartedAt:  started,
		FinishedAt: finished,
	})
	return snap, err
}

// record appends the event to every sink; failures are swallowed.
func (o *Orchestrator) record(e history.Event) {
	o.sinkMu.Lock()
	sinks := append([]history.Sink(nil), o.sinks...)
	o.sinkMu.Unlock()
	for _, s := range sinks {
		_ = s.Send(context.Background(), e)
	}
}

// startServer is the shared tail of install/start/restart/reinstall. It
// always clears any stale instance first, runs the start script, and lets
// the health probe decide success: a grumbling script is forgiven when the
// server comes up, and a clean script exit means nothing until it does.
func (o *Orchestrator) startServer(ctx context.Context, action string) (status.Status, error) {
	_ = o.stopServer(ctx)

	o.store.Update(func(st *status.Status) {
		st.Phase = status.PhaseStarting
		st.Running = false
		st.Error = ""
		st.Message = "Starting local server…"
		st.LogLine = ""
		st.Installed = true
		st.InstallDir = o.prov.RepoDir()
	})

	repoDir := o.prov.RepoDir()
	name, args := script.StartCommand(repoDir)
	var scriptErr error
	if err := o.runner.Run(repoDir, o.cfg.ScriptEnv(), "start", name, args...); err != nil {
		scriptErr = err
		o.store.Update(func(st *status.Status) {
			st.Message = "start script reported: " + err.Error()
			st.Error = err.Error()
		})
	}

	if err := o.prober.WaitFor(ctx, true); err != nil {
		metrics.SetServerUp(false)
		o.store.Update(func(st *status.Status) {
			st.Phase = status.PhaseError
			st.Running = false
			st.Message = err.Error()
			st.Error = err.Error()
		})
		// The script's own error is the more specific cause when present.
		if scriptErr != nil {
			return status.Status{}, scriptErr
		}
		return status.Status{}, err
	}
	metrics.SetServerUp(true)

	if scriptErr != nil {
		slog.Warn("start script failed but server is healthy", "action", action, "error", scriptErr)
		o.store.Update(func(st *status.Status) {
			st.Error = ""
			st.Message = "Server started with warnings."
		})
	}

	now := time.Now()
	snap := o.store.Update(func(st *status.Status) {
		st.Phase = status.PhaseRunning
		st.Running = true
		if scriptErr == nil {
			st.Message = "Server " + action + "ed."
		}
		st.LastAction = action
		st.LastSuccessAt = &now
	})
	return snap, nil
}

// stopServer is best-effort: a missing checkout is a no-op success, a
// failing stop script is tolerated, and so is a server that takes too long
// to go down. Only the dominant operation's outcome is ever reported.
func (o *Orchestrator) stopServer(ctx context.Context) error {
	if !o.prov.Installed() {
		return nil
	}
	repoDir := o.prov.RepoDir()
	name, args := script.StopCommand(repoDir)
	if err := o.runner.Run(repoDir, o.cfg.ScriptEnv(), "stop", name, args...); err != nil {
		slog.Debug("stop script failed", "error", err)
	}
	if err := o.prober.WaitFor(ctx, false); err != nil {
		slog.Debug("server did not confirm shutdown", "error", err)
		return nil
	}
	metrics.SetServerUp(false)
	return nil
}
