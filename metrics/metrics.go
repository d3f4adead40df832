package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the recorder's Prometheus collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	deviceCalls  *prometheus.CounterVec
	crossings    *prometheus.CounterVec
	switchovers  prometheus.Counter
	armed        prometheus.Gauge
	activeCamera prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	deviceCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tombola_device_calls_total",
		Help: "Device control calls by target, action and outcome",
	}, []string{"target", "action", "outcome"})
	crossings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tombola_crossings_total",
		Help: "Switch events received by the orchestrator, by source",
	}, []string{"sensor"})
	switchovers := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tombola_switchovers_total",
		Help: "Completed camera switch-over sequences",
	})
	armed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tombola_armed",
		Help: "1 while the orchestrator is armed",
	})
	activeCamera := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tombola_active_camera",
		Help: "Camera slot currently feeding the take (0 when idle)",
	})

	registry.MustRegister(deviceCalls, crossings, switchovers, armed, activeCamera)

	return &Metrics{
		registry:     registry,
		deviceCalls:  deviceCalls,
		crossings:    crossings,
		switchovers:  switchovers,
		armed:        armed,
		activeCamera: activeCamera,
	}
}

func (m *Metrics) ObserveDeviceCall(target, action, outcome string) {
	m.deviceCalls.WithLabelValues(target, action, outcome).Inc()
}

func (m *Metrics) IncCrossings(sensor string) {
	m.crossings.WithLabelValues(sensor).Inc()
}

func (m *Metrics) IncSwitchovers() {
	m.switchovers.Inc()
}

func (m *Metrics) SetArmed(armed bool) {
	if armed {
		m.armed.Set(1)
		return
	}
	m.armed.Set(0)
}

func (m *Metrics) SetActiveCamera(id int) {
	m.activeCamera.Set(float64(id))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
