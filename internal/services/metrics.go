package services

import "github.com/prometheus/client_golang/prometheus"

var (
	reportTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_transitions_total",
			Help: "Committed report state changes, by kind (workflow, moderation, delete, create).",
		},
		[]string{"kind"},
	)

	reactionToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaction_toggles_total",
			Help: "Reaction toggles by outcome (added, updated, removed).",
		},
		[]string{"action"},
	)

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_messages_total",
			Help: "Messages sent to conversations; replayed marks idempotent retries.",
		},
		[]string{"replayed"},
	)
)

func init() {
	prometheus.MustRegister(reportTransitions, reactionToggles, messagesSent)
}
