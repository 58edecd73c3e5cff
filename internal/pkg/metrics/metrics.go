package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GatewayRequests counts calls to the pod-control API.
	// outcome: ok, upstream_error, transport_error, config_error
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpod_gateway_requests_total",
			Help: "Total number of calls to the pod-control API.",
		},
		[]string{"op", "outcome"},
	)

	// GatewayLatency records the duration of calls to the pod-control API.
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botpod_gateway_request_duration_seconds",
			Help:    "Latency of calls to the pod-control API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Intents counts lifecycle intents by kind and outcome.
	// outcome: dispatched, coalesced, noop, failed
	Intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpod_intents_total",
			Help: "Total number of wake-up and shutdown intents by outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// CacheRefreshes counts pod status cache refreshes.
	CacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpod_cache_refreshes_total",
			Help: "Total number of pod status cache refreshes.",
		},
		[]string{"scope", "result"}, // scope: list/detail, result: ok/error
	)

	// WatchedPods is the number of pods refreshed on the short cadence.
	WatchedPods = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botpod_cache_watched_pods",
			Help: "Number of pods whose detail is refreshed on the watch cadence.",
		},
	)

	// OpenSessions is the number of sessions that have not exited yet.
	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botpod_sessions_open",
			Help: "Number of open conferencing sessions.",
		},
	)

	// SessionExits counts session exits by the signal that won.
	SessionExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botpod_session_exits_total",
			Help: "Total number of session exits by reason.",
		},
		[]string{"reason"},
	)

	// MQTTConnectivityStatus is 1 while the MQTT client is connected.
	MQTTConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botpod_mqtt_connectivity_status",
			Help: "The connectivity status to the MQTT broker (1=Connected, 0=Disconnected).",
		},
	)
)

func init() {
	prometheus.MustRegister(
		GatewayRequests,
		GatewayLatency,
		Intents,
		CacheRefreshes,
		WatchedPods,
		OpenSessions,
		SessionExits,
		MQTTConnectivityStatus,
	)
}
