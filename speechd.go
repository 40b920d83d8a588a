package speechd

import (
	"context"
	"net/http"

	cfg "github.com/artasov/speechd/internal/config"
	"github.com/artasov/speechd/internal/history"
	"github.com/artasov/speechd/internal/lifecycle"
	"github.com/artasov/speechd/internal/metrics"
	"github.com/artasov/speechd/internal/models"
	iapi "github.com/artasov/speechd/internal/server"
	"github.com/artasov/speechd/internal/status"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Status = status.Status

type Phase = status.Phase

type HistoryEvent = history.Event

type HistorySink = history.Sink

// Manager is a thin facade over internal/lifecycle.Orchestrator.
// It provides a stable public API for embedding.

type Manager struct {
	inner *lifecycle.Orchestrator
	cfg   *cfg.Config
}

func New(c *cfg.Config) *Manager {
	return &Manager{inner: lifecycle.New(c), cfg: c}
}

func (m *Manager) Install(ctx context.Context) (Status, error)   { return m.inner.Install(ctx) }
func (m *Manager) Start(ctx context.Context) (Status, error)     { return m.inner.StartExisting(ctx) }
func (m *Manager) Stop(ctx context.Context) (Status, error)      { return m.inner.Stop(ctx) }
func (m *Manager) Restart(ctx context.Context) (Status, error)   { return m.inner.Restart(ctx) }
func (m *Manager) Reinstall(ctx context.Context) (Status, error) { return m.inner.Reinstall(ctx) }
func (m *Manager) Status() Status                                { return m.inner.Status() }
func (m *Manager) CheckHealth(ctx context.Context) Status        { return m.inner.CheckHealth(ctx) }
func (m *Manager) SetHistorySinks(sinks ...HistorySink)          { m.inner.SetSinks(sinks...) }
func (m *Manager) CloseHistorySinks()                            { m.inner.CloseSinks() }

// Subscribe returns a channel of status snapshots and a cancel func.
func (m *Manager) Subscribe(buf int) (<-chan Status, func()) {
	return m.inner.Store().Subscribe(buf)
}

// ModelDownloaded reports whether the model has weights in the checkout cache.
func (m *Manager) ModelDownloaded(name string) bool {
	return models.Downloaded(m.cfg.RepoDir(), name)
}

func LoadConfig(path string) (*cfg.Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the internal API using the given manager.
func NewHTTPServer(addr, basePath string, m *Manager) *http.Server {
	return iapi.NewServer(addr, basePath, m.inner, m.cfg)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
