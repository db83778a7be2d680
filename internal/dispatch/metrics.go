package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboundSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "messages_sent_total",
			Help:      "Total number of outbound messages accepted by the provider.",
		},
		[]string{"kind"},
	)

	outboundFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "messages_failed_total",
			Help:      "Total number of outbound sends that failed, by error kind.",
		},
		[]string{"error_kind"},
	)
)
