package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce               sync.Once
	httpDurationHistogram      *prometheus.HistogramVec
	ledgerViolationCounter     *prometheus.CounterVec
	idempotencyCounter         *prometheus.CounterVec
	identifierCollisionCounter prometheus.Counter
	workerRunCounter           *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerViolationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_violations_total",
			Help: "Ledger invariant violations found by reconciliation",
		}, []string{"check", "currency"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		identifierCollisionCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "account_number_collisions_total",
			Help: "Account number generation retries due to unique index collisions",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerViolationCounter,
			idempotencyCounter,
			identifierCollisionCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementLedgerViolation(check, currency string) {
	if ledgerViolationCounter == nil {
		return
	}
	ledgerViolationCounter.WithLabelValues(check, currency).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementIdentifierCollision() {
	if identifierCollisionCounter == nil {
		return
	}
	identifierCollisionCounter.Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
