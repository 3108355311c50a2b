package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	payoutOutcomeCounter  *prometheus.CounterVec
	payoutAmountHistogram *prometheus.HistogramVec
	fraudEventCounter     *prometheus.CounterVec
	autoBlacklistCounter  *prometheus.CounterVec
	riskLevelCounter      *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		payoutOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_attempts_total",
			Help: "Auto-payout attempt outcomes",
		}, []string{"rail", "outcome"})

		payoutAmountHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payout_amount_cents",
			Help:    "Disbursed amounts in cents",
			Buckets: []float64{1_000, 5_000, 10_000, 50_000, 100_000, 500_000},
		}, []string{"rail"})

		fraudEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_events_total",
			Help: "Ingested fraud event outcomes",
		}, []string{"event_type", "outcome"})

		autoBlacklistCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auto_blacklist_total",
			Help: "Automatic blacklist insertions by fraud type",
		}, []string{"fraud_type"})

		riskLevelCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Risk assessments by resulting level",
		}, []string{"level"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			payoutOutcomeCounter,
			payoutAmountHistogram,
			fraudEventCounter,
			autoBlacklistCounter,
			riskLevelCounter,
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

func IncrementPayoutOutcome(rail, outcome string) {
	if payoutOutcomeCounter == nil {
		return
	}
	payoutOutcomeCounter.WithLabelValues(rail, outcome).Inc()
}

func ObservePayoutAmount(rail string, amountCents int64) {
	if payoutAmountHistogram == nil {
		return
	}
	payoutAmountHistogram.WithLabelValues(rail).Observe(float64(amountCents))
}

func IncrementFraudEvent(eventType, outcome string) {
	if fraudEventCounter == nil {
		return
	}
	fraudEventCounter.WithLabelValues(eventType, outcome).Inc()
}

func IncrementAutoBlacklist(fraudType string) {
	if autoBlacklistCounter == nil {
		return
	}
	autoBlacklistCounter.WithLabelValues(fraudType).Inc()
}

func IncrementRiskLevel(level string) {
	if riskLevelCounter == nil {
		return
	}
	riskLevelCounter.WithLabelValues(level).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
