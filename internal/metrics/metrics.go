package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directchat_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"kind"}, // "text", "image", "video" or "mixed"
	)

	MessagesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "directchat_messages_seen_total",
			Help: "Total messages flipped to seen",
		},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "directchat_messages_deleted_total",
			Help: "Total messages soft-deleted",
		},
	)

	// Realtime metrics
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directchat_realtime_pushes_total",
			Help: "Realtime pushes by event and outcome",
		},
		[]string{"event", "outcome"}, // outcome: "delivered", "offline", "failed"
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "directchat_online_users",
			Help: "Users with a registered realtime connection",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
