// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ActionsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starcore",
	Subsystem: "replication",
	Name:      "actions_emitted_total",
	Help:      "Outbound actions raised by replication engines.",
}, []string{"container", "kind"})

var ActionsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starcore",
	Subsystem: "replication",
	Name:      "actions_applied_total",
	Help:      "Inbound actions applied to a container.",
}, []string{"container", "kind"})

var ActionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starcore",
	Subsystem: "replication",
	Name:      "action_errors_total",
	Help:      "Inbound actions rejected, by error code.",
}, []string{"container", "code"})

var Participants = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "starcore",
	Subsystem: "hub",
	Name:      "participants",
	Help:      "Connected participants.",
})

var Frames = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starcore",
	Subsystem: "hub",
	Name:      "frames_total",
	Help:      "Transport frames by direction and type.",
}, []string{"direction", "type"})

var CheckpointDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "starcore",
	Subsystem: "store",
	Name:      "checkpoint_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

// Collectors lists every collector of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ActionsEmitted,
		ActionsApplied,
		ActionErrors,
		Participants,
		Frames,
		CheckpointDuration,
	}
}

// NewRegistry returns a registry holding this package's collectors plus the
// Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
