package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client-side metrics for the outbound API and the notification stream.
var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_api_requests_total",
			Help: "Total number of outbound API requests.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_api_request_duration_seconds",
			Help:    "Outbound API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_token_refresh_total",
			Help: "Access token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	streamReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_stream_reconnects_total",
		Help: "Notification stream reconnect attempts.",
	})

	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_stream_events_total",
			Help: "Notification stream events by kind.",
		},
		[]string{"kind"},
	)
)

// Init registers the console metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		tokenRefreshTotal,
		streamReconnectsTotal,
		streamEventsTotal,
	)
}

// Handler exposes the Prometheus endpoint for the optional debug listener.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest records one finished outbound call.
func ObserveAPIRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, CanonicalPath(path), strconv.Itoa(status)}
	apiRequestsTotal.WithLabelValues(labels...).Inc()
	apiRequestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
}

// ObserveTokenRefresh records a refresh attempt; outcome is "success" or "failure".
func ObserveTokenRefresh(outcome string) {
	tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// ObserveStreamReconnect records one reconnect attempt of the notification stream.
func ObserveStreamReconnect() {
	streamReconnectsTotal.Inc()
}

// ObserveStreamEvent records one parsed notification.
func ObserveStreamEvent(kind string) {
	streamEventsTotal.WithLabelValues(kind).Inc()
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded. Identifier segments under a known collection become ":id".
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		if _, ok := collections[segments[i-1]]; ok && segments[i] != "" && !isKnownLeaf(segments[i]) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

var collections = map[string]struct{}{
	"users":            {},
	"admins":           {},
	"loans":            {},
	"cards":            {},
	"deposits":         {},
	"transactions":     {},
	"roles":            {},
	"permissions":      {},
	"role_permissions": {},
}

func isKnownLeaf(segment string) bool {
	switch segment {
	case "login", "refresh", "me":
		return true
	}
	_, ok := collections[segment]
	return ok
}
