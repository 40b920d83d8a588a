package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Completed lifecycle operations by verb and result.",
		}, []string{"op", "result"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "speechd",
			Subsystem: "lifecycle",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of lifecycle operations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"op"},
	)
	healthProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "health",
			Name:      "probes_total",
			Help:      "Health probes by observed result.",
		}, []string{"healthy"},
	)
	serverUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "speechd",
			Subsystem: "server",
			Name:      "up",
			Help:      "Whether the managed server was reachable at the last probe.",
		},
	)
	scriptLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "script",
			Name:      "output_lines_total",
			Help:      "Control-script output lines relayed to status.",
		}, []string{"label"},
	)
)

// Register registers all metrics with the provided registerer.
// Safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{operations, operationDuration, healthProbes, serverUp, scriptLines}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncOperation(op string, ok bool) {
	if regOK.Load() {
		result := "error"
		if ok {
			result = "ok"
		}
		operations.WithLabelValues(op, result).Inc()
	}
}

func ObserveOperationDuration(op string, seconds float64) {
	if regOK.Load() {
		operationDuration.WithLabelValues(op).Observe(seconds)
	}
}

func IncProbe(healthy bool) {
	if regOK.Load() {
		v := "false"
		if healthy {
			v = "true"
		}
		healthProbes.WithLabelValues(v).Inc()
	}
}

func SetServerUp(up bool) {
	if regOK.Load() {
		v := 0.0
		if up {
			v = 1
		}
		serverUp.Set(v)
	}
}

func IncScriptLine(label string) {
	if regOK.Load() {
		scriptLines.WithLabelValues(label).Inc()
	}
}
