// Package metrics exposes migration counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Recorder holds the counters of one process. Each Recorder owns its
// registry so tests never collide on global registration.
type Recorder struct {
	Registry         *prometheus.Registry
	Records          *prometheus.CounterVec
	DestinationCalls *prometheus.CounterVec
}

// New creates a Recorder with its counters registered
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghl2hs_records_total",
				Help: "Source records handled, by stream and outcome",
			},
			[]string{"stream", "outcome"},
		),
		DestinationCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghl2hs_destination_calls_total",
				Help: "Destination API calls, by operation and HTTP status",
			},
			[]string{"operation", "status"},
		),
	}
	r.Registry.MustRegister(r.Records, r.DestinationCalls)
	return r
}

// RecordOutcome counts one record outcome for a stream
func (r *Recorder) RecordOutcome(stream, outcome string) {
	if r == nil {
		return
	}
	r.Records.WithLabelValues(stream, outcome).Inc()
}

// ObserveCall counts one destination call; status 0 means a transport error
func (r *Recorder) ObserveCall(operation string, status int) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.DestinationCalls.WithLabelValues(operation, label).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// Serve starts a /metrics listener in the background. The returned server
// is shut down by the caller.
func (r *Recorder) Serve(addr string, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	log.Infof("Prometheus metrics available at http://%s/metrics", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics endpoint stopped")
		}
	}()
	return srv
}
