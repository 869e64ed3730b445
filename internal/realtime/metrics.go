package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Number of live realtime subscribers.",
		},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Events published to the hub, by topic kind.",
		},
		[]string{"topic_kind"},
	)

	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Events dropped because a subscriber queue was full.",
		},
		[]string{"topic_kind"},
	)
)

func init() {
	prometheus.MustRegister(subscribersGauge, eventsPublished, eventsDropped)
}
