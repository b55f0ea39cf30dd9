// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/robots/logger"
)

type Metrics struct {
	Sessions      prometheus.Gauge
	Rounds        prometheus.Counter
	Turns         prometheus.Counter
	BombsExploded prometheus.Counter
	TurnLatency   prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of connected sessions",
		}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of rounds started",
		}),
		Turns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns resolved",
		}),
		BombsExploded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bombs_exploded_total",
			Help:      "Total number of bombs exploded",
		}),
		TurnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_seconds",
			Help:      "Time spent resolving a turn",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.Sessions,
		m.Rounds,
		m.Turns,
		m.BombsExploded,
		m.TurnLatency,
	)

	return m
}

// Monitor owns a private registry, so several can live in one process.
// Its methods satisfy room.Observer.
type Monitor struct {
	metrics  *Metrics
	registry *prometheus.Registry
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Monitor{
		metrics:  NewMetrics(namespace, reg),
		registry: reg,
	}
}

func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on ln until ctx is done.
func (m *Monitor) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Log.Infof("Metrics listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Monitor) SessionOpened() {
	m.metrics.Sessions.Inc()
}

func (m *Monitor) SessionClosed() {
	m.metrics.Sessions.Dec()
}

func (m *Monitor) RoundStarted() {
	m.metrics.Rounds.Inc()
}

func (m *Monitor) RoundEnded() {}

func (m *Monitor) TurnResolved(events int, elapsed time.Duration) {
	m.metrics.Turns.Inc()
	m.metrics.TurnLatency.Observe(elapsed.Seconds())
}

func (m *Monitor) BombsExploded(n int) {
	m.metrics.BombsExploded.Add(float64(n))
}
