// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks outbound API request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Outbound API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "status"},
	)

	// RequestsTotal tracks total outbound API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_requests_total",
			Help: "Total outbound API requests",
		},
		[]string{"method", "status"},
	)

	// RequestRetriesTotal tracks requests resent after a token refresh.
	RequestRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_request_retries_total",
			Help: "Requests resent once after a successful token refresh",
		},
	)

	// TokenRefreshTotal tracks token refresh attempts by result.
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_token_refresh_total",
			Help: "Token refresh attempts",
		},
		[]string{"result"},
	)

	// LoginRedirectsTotal tracks interactive re-authentication redirects.
	LoginRedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_login_redirects_total",
			Help: "Interactive login redirects after a failed refresh",
		},
	)

	// HubEventsTotal tracks inbound hub events by outcome.
	HubEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_total",
			Help: "Inbound hub events",
		},
		[]string{"event", "result"},
	)

	// HubConnectionState tracks the event channel state (0 closed, 1 connecting, 2 open, 3 reconnecting).
	HubConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connection_state",
			Help: "Current event channel state",
		},
	)

	// HubReconnectsTotal tracks transport reconnections.
	HubReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_reconnects_total",
			Help: "Transport reconnections",
		},
	)

	// StreamFragmentsTotal tracks streamed assistant fragments ingested.
	StreamFragmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_fragments_total",
			Help: "Streamed assistant fragments ingested",
		},
	)

	// StreamActiveMessages tracks messages currently being reassembled.
	StreamActiveMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_active_messages",
			Help: "Messages currently held in the stream accumulator",
		},
	)

	// ServerRequestDuration tracks companion API request duration.
	ServerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "companion_request_duration_seconds",
			Help:    "Companion API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// ServerRequestsTotal tracks companion API requests.
	ServerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_requests_total",
			Help: "Total companion API requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "companion_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// NotificationsUnread tracks unread notifications.
	NotificationsUnread = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_unread",
			Help: "Unread notifications",
		},
	)
)

// Hub event results.
const (
	EventAccepted  = "accepted"
	EventFiltered  = "filtered"
	EventMalformed = "malformed"
)

// RecordRequest records metrics for an outbound request.
func RecordRequest(method, status string, duration float64) {
	RequestDuration.WithLabelValues(method, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordRefresh records the outcome of a token refresh.
func RecordRefresh(ok bool) {
	if ok {
		TokenRefreshTotal.WithLabelValues("success").Inc()
		return
	}
	TokenRefreshTotal.WithLabelValues("failure").Inc()
}

// RecordHubEvent records an inbound hub event.
func RecordHubEvent(event, result string) {
	HubEventsTotal.WithLabelValues(event, result).Inc()
}

// RecordServerRequest records metrics for a companion API request.
func RecordServerRequest(method, path, status string, duration float64) {
	ServerRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	ServerRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
