package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formflow_http_requests_total",
		Help: "HTTP requests served, by route, method, and status.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "formflow_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})

	chatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formflow_chat_turns_total",
		Help: "Chat turns processed, by outcome.",
	}, []string{"status"})

	forwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "formflow_gateway_forward_duration_seconds",
		Help:    "Latency of outbound gateway forwards.",
		Buckets: prometheus.DefBuckets,
	})
)
