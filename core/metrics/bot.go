package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/pdfbot/core/logger"
)

func init() {
	register(updates, rateLimited, flowSteps, flowFailures, pdfOps, pdfLatency, pdfAbandoned, cacheRequests, payments, callbacks, sends, droppedLogs)
}

var (
	updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_updates_total",
			Help: "Incoming Telegram updates by kind.",
		},
		[]string{"kind"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_rate_limited_total",
			Help: "Updates dropped by the per-user rate limit, by kind.",
		},
		[]string{"kind"},
	)

	flowSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_flow_steps_total",
			Help: "Conversation steps by flow and outcome (advance/stay/end/fail).",
		},
		[]string{"flow", "outcome"},
	)

	flowFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_flow_failures_total",
			Help: "Conversation failures by flow and failure kind.",
		},
		[]string{"flow", "kind"},
	)

	pdfOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_pdf_operations_total",
			Help: "PDF operations by operation and success.",
		},
		[]string{"op", "success"},
	)

	pdfLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdfbot_pdf_operation_latency_ms",
			Help:    "PDF operation latency in milliseconds, download included.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"op"},
	)

	pdfAbandoned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdfbot_pdf_abandoned_running",
			Help: "PDF operations past their timeout that are still running outside a worker slot.",
		},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_cache_requests_total",
			Help: "Cache hits and misses per cache.",
		},
		[]string{"cache", "result"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_payments_total",
			Help: "Payments by status (invoiced/prechecked/rejected/confirmed).",
		},
		[]string{"status"},
	)

	droppedLogs = prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "pdfbot_log_lines_dropped_total",
			Help: "Debug log lines discarded while the log writer was saturated.",
		},
		func() float64 { return float64(logger.Dropped()) },
	)

	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_sends_total",
			Help: "Outbound Bot API calls by action and result (ok or the error kind).",
		},
		[]string{"action", "result"},
	)

	callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfbot_callbacks_total",
			Help: "Inline button presses by routed kind.",
		},
		[]string{"kind"},
	)
)

// IncUpdate counts one incoming update.
func IncUpdate(kind string) {
	updates.WithLabelValues(norm(kind)).Inc()
}

// IncRateLimited counts one update dropped by the rate limiter.
func IncRateLimited(kind string) {
	rateLimited.WithLabelValues(norm(kind)).Inc()
}

// ObserveStep counts one engine step.
func ObserveStep(flow, outcome string) {
	flowSteps.WithLabelValues(norm(flow), norm(outcome)).Inc()
}

// IncFailure counts one classified conversation failure.
func IncFailure(flow, kind string) {
	flowFailures.WithLabelValues(norm(flow), norm(kind)).Inc()
}

// ObservePDF records a finished PDF operation.
func ObservePDF(op string, took time.Duration, success bool) {
	pdfOps.WithLabelValues(norm(op), strconv.FormatBool(success)).Inc()
	pdfLatency.WithLabelValues(norm(op)).Observe(float64(took.Milliseconds()))
}

// IncCacheRequest counts a cache lookup; result is "hit" or "miss".
func IncCacheRequest(cache, result string) {
	cacheRequests.WithLabelValues(norm(cache), norm(result)).Inc()
}

// IncPayment counts a payment lifecycle step.
func IncPayment(status string) {
	payments.WithLabelValues(norm(status)).Inc()
}

// IncCallback counts a routed callback.
func IncCallback(kind string) {
	callbacks.WithLabelValues(norm(kind)).Inc()
}

// IncSend counts one finished outbound call.
func IncSend(action, result string) {
	sends.WithLabelValues(norm(action), norm(result)).Inc()
}

// AddAbandonedPDF moves the gauge of timed out PDF operations still running.
func AddAbandonedPDF(delta int) {
	pdfAbandoned.Add(float64(delta))
}
