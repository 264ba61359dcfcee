package httputil

import (
	"context"
	"net/http/httptrace"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "blihweb_out_conns",
	Help: "A gauge of in-use TCP connections",
}, []string{"service"})

// SetClientTrace counts connections taken by outgoing requests made with ctx.  Upstream
// requests ask for "Connection: close" so connections are never returned idle: call release
// once the response body is closed to give the connection back to the gauge.
func SetClientTrace(ctx context.Context, service string) (traced context.Context, release func()) {
	var acquired atomic.Int64
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			acquired.Add(1)
			connectionGauge.WithLabelValues(service).Inc()
		},
		PutIdleConn: func(err error) {
			if acquired.Add(-1) >= 0 {
				connectionGauge.WithLabelValues(service).Dec()
			} else {
				acquired.Add(1)
			}
		},
	}
	release = func() {
		n := acquired.Swap(0)
		if n > 0 {
			connectionGauge.WithLabelValues(service).Sub(float64(n))
		}
	}
	return httptrace.WithClientTrace(ctx, trace), release
}
