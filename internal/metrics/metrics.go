package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clockdin_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clockdin_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	scanCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clockdin_scan_cycles_total",
			Help: "Due-reminder scan cycles by result",
		},
		[]string{"result"},
	)

	dueBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clockdin_due_batch_size",
			Help:    "Number of due reminders picked up per scan",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	remindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clockdin_reminders_dispatched_total",
			Help: "Reminder dispatch attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	remindersOrphaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clockdin_reminders_orphaned_total",
			Help: "Reminders skipped because their event no longer exists",
		},
	)

	deadLettersPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clockdin_dead_letters_published_total",
			Help: "Reminders mirrored to the dead letter queue",
		},
	)

	repairRecordsFixed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clockdin_repair_records_fixed_total",
			Help: "Notification records fixed by the repair pass",
		},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clockdin_idempotency_hits_total",
			Help: "Reminder create requests served from idempotency cache",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScanCycle records the outcome of one due-reminder scan
func RecordScanCycle(result string) {
	scanCycles.WithLabelValues(result).Inc()
}

// RecordDueBatch records how many reminders a scan picked up
func RecordDueBatch(count int) {
	dueBatchSize.Observe(float64(count))
}

// RecordDispatch records one reminder dispatch attempt
func RecordDispatch(channel, outcome string) {
	remindersDispatched.WithLabelValues(channel, outcome).Inc()
}

// RecordOrphaned records a reminder skipped for a missing event
func RecordOrphaned() {
	remindersOrphaned.Inc()
}

// RecordDeadLetter records a reminder mirrored to the DLQ
func RecordDeadLetter() {
	deadLettersPublished.Inc()
}

// RecordRepairFixed records notification records fixed by a repair run
func RecordRepairFixed(count int) {
	repairRecordsFixed.Add(float64(count))
}

// RecordIdempotencyHit records a cache hit for idempotency
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
