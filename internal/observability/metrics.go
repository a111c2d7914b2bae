// Package observability exposes engagement metrics. Counters are fed by
// subscribing to the domain event bus, so instrumented code paths stay
// free of metrics plumbing.
package observability

import (
	"context"

	"presales_backend/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	callsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_calls_placed_total",
		Help: "The total number of outbound calls placed",
	})

	callOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_call_outcomes_total",
		Help: "Terminal call outcomes by classification",
	}, []string{"outcome"})

	retriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_retries_scheduled_total",
		Help: "The total number of retry attempts scheduled",
	})

	escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_escalations_total",
		Help: "Channel escalations by fallback channel",
	}, []string{"channel"})

	leadsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_leads_exhausted_total",
		Help: "Leads that ran out of channels without being reached",
	})

	leadsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_leads_recovered_total",
		Help: "Stuck in-flight leads resolved by the reconciler",
	})

	callbacksRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_callbacks_requested_total",
		Help: "Callback-at-a-specific-time requests honored",
	})

	batchesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_jobs_submitted_total",
		Help: "The total number of batch jobs accepted",
	})

	wavesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_waves_dispatched_total",
		Help: "The total number of batch waves fired",
	})

	waveLeadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_wave_lead_failures_total",
		Help: "Leads within a wave whose dial trigger failed",
	})
)

// Register subscribes the metric counters to the domain event bus.
func Register(bus events.Bus) {
	count := func(fn func(events.Event)) events.Handler {
		return events.HandlerFunc(func(_ context.Context, event events.Event) error {
			fn(event)
			return nil
		})
	}

	bus.Subscribe(events.CallPlaced{}.EventName(), count(func(events.Event) {
		callsPlaced.Inc()
	}))
	bus.Subscribe(events.LeadAnswered{}.EventName(), count(func(events.Event) {
		callOutcomes.WithLabelValues("answered").Inc()
	}))
	bus.Subscribe(events.CallOutcomeRecorded{}.EventName(), count(func(event events.Event) {
		if e, ok := event.(events.CallOutcomeRecorded); ok {
			callOutcomes.WithLabelValues(e.Outcome).Inc()
		}
	}))
	bus.Subscribe(events.CallRetryScheduled{}.EventName(), count(func(events.Event) {
		retriesScheduled.Inc()
	}))
	bus.Subscribe(events.LeadEscalated{}.EventName(), count(func(event events.Event) {
		if e, ok := event.(events.LeadEscalated); ok {
			escalations.WithLabelValues(e.Channel).Inc()
		}
	}))
	bus.Subscribe(events.LeadExhausted{}.EventName(), count(func(events.Event) {
		leadsExhausted.Inc()
	}))
	bus.Subscribe(events.LeadRecovered{}.EventName(), count(func(events.Event) {
		leadsRecovered.Inc()
	}))
	bus.Subscribe(events.CallbackRequested{}.EventName(), count(func(events.Event) {
		callbacksRequested.Inc()
	}))
	bus.Subscribe(events.BatchSubmitted{}.EventName(), count(func(events.Event) {
		batchesSubmitted.Inc()
	}))
	bus.Subscribe(events.BatchWaveDispatched{}.EventName(), count(func(event events.Event) {
		wavesDispatched.Inc()
		if e, ok := event.(events.BatchWaveDispatched); ok {
			waveLeadFailures.Add(float64(e.Failed))
		}
	}))
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
