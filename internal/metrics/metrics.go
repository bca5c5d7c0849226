// Package metrics exposes Prometheus metrics for collection updates and
// search-index synchronisation.
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
			Name: "slate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	collectionUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_collection_updates_total",
			Help: "Collection updates by outcome code",
		},
		[]string{"code"},
	)

	privacyTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_privacy_transitions_total",
			Help: "Committed collection privacy transitions",
		},
		[]string{"transition"},
	)

	indexOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_index_sync_ops_total",
			Help: "Index calls issued by sync, by target, op and result",
		},
		[]string{"target", "op", "result"},
	)

	indexDocsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_index_sync_documents_total",
			Help: "Documents carried by successful index calls",
		},
		[]string{"target", "op"},
	)

	indexFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_index_sync_failures_total",
			Help: "Index calls that failed after retries; the index may diverge from the store",
		},
		[]string{"target", "op"},
	)

	indexOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slate_index_sync_duration_seconds",
			Help:    "Index call duration including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "op"},
	)

	indexRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slate_index_retries_total",
			Help: "Retried index calls",
		},
	)

	reconcileRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_reconcile_repairs_total",
			Help: "Documents repaired by reconciliation",
		},
		[]string{"target", "op"},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slate_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCollectionUpdate records the outcome of one updateCollection call.
// code is "OK" on success, otherwise the error code.
func RecordCollectionUpdate(code string) {
	collectionUpdatesTotal.WithLabelValues(code).Inc()
}

// RecordPrivacyTransition records a committed privacy change.
func RecordPrivacyTransition(transition string) {
	privacyTransitionsTotal.WithLabelValues(transition).Inc()
}

// RecordIndexOp records one index call made by sync.
func RecordIndexOp(target, op string, docs int, duration time.Duration, err error) {
	indexOpDuration.WithLabelValues(target, op).Observe(duration.Seconds())
	if err != nil {
		indexOpsTotal.WithLabelValues(target, op, "error").Inc()
		indexFailuresTotal.WithLabelValues(target, op).Inc()
		return
	}
	indexOpsTotal.WithLabelValues(target, op, "ok").Inc()
	indexDocsTotal.WithLabelValues(target, op).Add(float64(docs))
}

// RecordIndexRetry records one retried index call.
func RecordIndexRetry() {
	indexRetriesTotal.Inc()
}

// RecordReconcileRepair records documents repaired by reconciliation.
func RecordReconcileRepair(target, op string, docs int) {
	if docs > 0 {
		reconcileRepairsTotal.WithLabelValues(target, op).Add(float64(docs))
	}
}

// RecordRateLimitHit records a rejected request.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}
