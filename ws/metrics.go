package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lightspeed_code",
		Name:      "events_total",
		Help:      "Inbound events processed, by event type.",
	}, []string{"event"})

	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lightspeed_code",
		Name:      "broadcasts_total",
		Help:      "Envelopes fanned out to one or more recipients.",
	})

	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lightspeed_code",
		Name:      "messages_dropped_total",
		Help:      "Outbound messages dropped because a client send buffer was full.",
	})

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lightspeed_code",
		Name:      "active_connections",
		Help:      "Currently registered websocket connections.",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lightspeed_code",
		Name:      "active_rooms",
		Help:      "Currently live rooms.",
	})
)
