package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the relay's Prometheus instruments.
type Metrics struct {
	GuestsConnected prometheus.Gauge
	AdminsConnected prometheus.Gauge
	Messages        *prometheus.CounterVec
	Moderation      *prometheus.CounterVec
}

// NewMetrics registers the relay metrics on the given registerer. Pass nil to
// use the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}
	return &Metrics{
		GuestsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_guests_connected",
			Help: "Number of guest connections currently registered.",
		}),
		AdminsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_admins_connected",
			Help: "Number of admin connections currently registered.",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Messages relayed, by sender side.",
		}, []string{"direction"}),
		Moderation: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_moderation_actions_total",
			Help: "Moderation actions applied to the message store.",
		}, []string{"action"}),
	}
}
