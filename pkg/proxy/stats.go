package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestHistograms = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blihweb_proxy_request_duration_seconds",
		Help:    "request durations for the BLIH proxy",
		Buckets: []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"operation", "code"})

var upstreamErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blihweb_proxy_upstream_errors_total",
		Help: "upstream calls that ended without a response",
	},
	[]string{"operation", "kind"})

var upstreamInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "blihweb_proxy_upstream_in_flight",
		Help: "upstream calls waiting for a response",
	},
	[]string{"operation"})

var responseSizes = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blihweb_proxy_response_size_bytes",
		Help:    "body sizes returned to callers",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8), //nolint: mnd
	},
	[]string{"operation"})
