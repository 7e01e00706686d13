// Package metrics exposes Prometheus collectors for the ledger services.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "babywallet"

type Collector struct {
	registry             *prometheus.Registry
	transactionsAppended *prometheus.CounterVec
	contributions        *prometheus.CounterVec
	settlements          *prometheus.CounterVec
	schedulerRuns        prometheus.Counter
	schedulerDuration    prometheus.Histogram
	pendingBacklog       prometheus.Gauge
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	projectionCache      *prometheus.CounterVec
	logger               *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		transactionsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_appended_total",
			Help:      "Ledger transactions appended, by type",
		}, []string{"type"}),
		contributions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_total",
			Help:      "RecordContribution calls by result (recorded, duplicate, rejected)",
		}, []string{"result"}),
		settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Transactions settled, by outcome",
		}, []string{"outcome"}),
		schedulerRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Contribution scheduler passes",
		}),
		schedulerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_run_duration_seconds",
			Help:      "Time taken by one contribution scheduler pass",
			Buckets:   prometheus.DefBuckets,
		}),
		pendingBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_transactions_stale",
			Help:      "Pending transactions older than the settlement re-announce threshold",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		projectionCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_cache_lookups_total",
			Help:      "Projection estimator cache lookups by result (hit, miss)",
		}, []string{"result"}),
		logger: logger,
	}
}

func (m *Collector) TransactionAppended(txType string) {
	if m == nil {
		return
	}
	m.transactionsAppended.WithLabelValues(txType).Inc()
}

// Contribution records the result of one RecordContribution call.
func (m *Collector) Contribution(result string) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(result).Inc()
}

func (m *Collector) Settlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

func (m *Collector) SchedulerRun(d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerRuns.Inc()
	m.schedulerDuration.Observe(d.Seconds())
}

func (m *Collector) SetPendingBacklog(n int) {
	if m == nil {
		return
	}
	m.pendingBacklog.Set(float64(n))
}

func (m *Collector) HTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Collector) ProjectionCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.projectionCache.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Collector) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr in the background. Workers without an
// HTTP API use it.
func (m *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", "error", err)
		}
	}()

	return server
}
