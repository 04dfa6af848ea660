// Package metrics exposes daemon counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "demoflow"

// Recorder owns a private registry and the demoflow collectors. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	sessionsActive    prometheus.Gauge
	transportCommands *prometheus.CounterVec
	stallPauses       prometheus.Counter
	fallbackReady     *prometheus.CounterVec
	autoAdvanceFired  prometheus.Counter
	backendRequests   *prometheus.CounterVec
}

// New builds a recorder with the Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live demo sessions",
		}),
		transportCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_commands_total",
			Help:      "Transport operations applied to the stream handles",
		}, []string{"op"}),
		stallPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stall_pauses_total",
			Help:      "Times playback was paused because a comparison stream stalled",
		}),
		fallbackReady: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_ready_total",
			Help:      "Streams marked ready by the fallback timer",
		}, []string{"stream"}),
		autoAdvanceFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_advance_fired_total",
			Help:      "Automatic jumps to the live preview step",
		}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Processing backend calls by endpoint and outcome",
		}, []string{"endpoint", "status"}),
	}
	r.registry.MustRegister(
		r.sessionsActive,
		r.transportCommands,
		r.stallPauses,
		r.fallbackReady,
		r.autoAdvanceFired,
		r.backendRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SessionOpened() {
	if r != nil {
		r.sessionsActive.Inc()
	}
}

func (r *Recorder) SessionClosed() {
	if r != nil {
		r.sessionsActive.Dec()
	}
}

func (r *Recorder) TransportCommand(op string) {
	if r != nil {
		r.transportCommands.WithLabelValues(op).Inc()
	}
}

func (r *Recorder) StallPause() {
	if r != nil {
		r.stallPauses.Inc()
	}
}

func (r *Recorder) FallbackReady(stream string) {
	if r != nil {
		r.fallbackReady.WithLabelValues(stream).Inc()
	}
}

func (r *Recorder) AutoAdvanceFired() {
	if r != nil {
		r.autoAdvanceFired.Inc()
	}
}

// BackendRequest counts one backend call; status is "ok" or "error".
func (r *Recorder) BackendRequest(endpoint, status string) {
	if r != nil {
		r.backendRequests.WithLabelValues(endpoint, status).Inc()
	}
}
