package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kudos_realtime_connections",
		Help: "Current number of registered realtime connections",
	})

	deliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kudos_realtime_delivery_failures_total",
		Help: "Number of connection writes that failed and dropped the connection",
	})

	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kudos_realtime_broadcasts_total",
		Help: "Number of messages fanned out by type",
	}, []string{"type"})

	publishCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kudos_realtime_publish_cycles_total",
		Help: "Number of periodic publish cycles by outcome",
	}, []string{"outcome"})

	notificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kudos_realtime_notifications_dropped_total",
		Help: "Number of like notifications dropped because the queue was full",
	})
)
