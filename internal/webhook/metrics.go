package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboundProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook",
			Name:      "inbound_messages_processed_total",
			Help:      "Total number of inbound messages processed from webhook deliveries.",
		},
		[]string{"type"},
	)

	statusProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook",
			Name:      "status_events_processed_total",
			Help:      "Total number of delivery-status events applied.",
		},
		[]string{"status"},
	)
)
