// Package metrics exposes Prometheus instrumentation for the discovery
// layer and a small metrics server to scrape it from.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SweepsTotal counts completed discovery sweeps.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compute_registry",
		Name:      "discovery_sweeps_total",
		Help:      "Number of completed discovery sweeps.",
	})

	// SweepFailuresTotal counts sweeps aborted by a chain read failure.
	SweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "compute_registry",
		Name:      "discovery_sweep_failures_total",
		Help:      "Number of discovery sweeps aborted by chain errors.",
	})

	// ChainReadsTotal counts contract calls by method.
	ChainReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compute_registry",
		Name:      "chain_reads_total",
		Help:      "Number of verifier contract reads by method.",
	}, []string{"method"})

	// ProbeFailuresTotal counts failed liveness probes by probe kind.
	ProbeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compute_registry",
		Name:      "probe_failures_total",
		Help:      "Number of failed node liveness probes by kind.",
	}, []string{"kind"})

	// RejectionsTotal counts trust pipeline rejections by reason.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compute_registry",
		Name:      "trust_rejections_total",
		Help:      "Number of nodes rejected by the trust pipeline, by reason.",
	}, []string{"reason"})

	// EligibleNodes tracks the eligible provider count of the last sweep.
	EligibleNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "compute_registry",
		Name:      "eligible_nodes",
		Help:      "Number of eligible providers in the current cache snapshot.",
	})
)

// MetricsServer serves the Prometheus endpoint on a dedicated listener,
// separate from any API listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
