package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's prometheus instruments.
type Metrics struct {
	registry        *prometheus.Registry
	OpenConnections prometheus.Gauge
	ActiveRooms     prometheus.Gauge
	EventsReceived  *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of open websocket connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms currently held by the registry",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of inbound socket events",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		m.OpenConnections,
		m.ActiveRooms,
		m.EventsReceived,
	)
	return m
}

// Handler serves the /metrics endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnOpened() {
	m.OpenConnections.Inc()
}

func (m *Metrics) ConnClosed() {
	m.OpenConnections.Dec()
}

// SetActiveRooms implements game.RoomGauge.
func (m *Metrics) SetActiveRooms(count int) {
	m.ActiveRooms.Set(float64(count))
}

func (m *Metrics) EventReceived(eventType string) {
	m.EventsReceived.WithLabelValues(eventType).Inc()
}
