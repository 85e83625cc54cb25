package services

import "github.com/prometheus/client_golang/prometheus"

var (
	botEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Inbound webhook events by decoded kind.",
		},
		[]string{"kind"},
	)

	checkoutSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_step_transitions_total",
			Help: "Conversation step reached after handling a turn.",
		},
		[]string{"step"},
	)

	tenantResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolutions_total",
			Help: "Tenant resolution outcomes.",
		},
		[]string{"outcome"}, // resolved | miss | error
	)
)

func init() {
	prometheus.MustRegister(botEvents, checkoutSteps, tenantResolutions)
}

func countEvent(kind string) { botEvents.WithLabelValues(kind).Inc() }

func countStep(step string) { checkoutSteps.WithLabelValues(step).Inc() }

func countResolution(outcome string) { tenantResolutions.WithLabelValues(outcome).Inc() }
