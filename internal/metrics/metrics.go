package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collectors struct {
	registry        *prometheus.Registry
	SweepsTotal     *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
	TicketsScanned  prometheus.Counter
	ScannerActions  *prometheus.CounterVec
	ScannerFailures prometheus.Counter
	TicketEvents    *prometheus.CounterVec
	SanctionSteps   *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
}

func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "inactivity_sweeps_total",
			Help:      "Inactivity sweeps by outcome.",
		}, []string{"outcome"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ticketbot",
			Name:      "inactivity_sweep_duration_seconds",
			Help:      "Duration of completed inactivity sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		TicketsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "inactivity_tickets_scanned_total",
			Help:      "Tickets evaluated by the inactivity scanner.",
		}),
		ScannerActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "inactivity_actions_total",
			Help:      "Transitions applied by the inactivity scanner.",
		}, []string{"action"}),
		ScannerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "inactivity_failures_total",
			Help:      "Tickets the scanner failed to process.",
		}),
		TicketEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "ticket_events_total",
			Help:      "Ticket lifecycle events.",
		}, []string{"event"}),
		SanctionSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "sanction_steps_total",
			Help:      "Sanction ladder steps applied to staff.",
		}, []string{"step"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	c.registry.MustRegister(
		c.SweepsTotal,
		c.SweepDuration,
		c.TicketsScanned,
		c.ScannerActions,
		c.ScannerFailures,
		c.TicketEvents,
		c.SanctionSteps,
		c.Notifications,
	)
	return c
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) Sweep(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.SweepsTotal.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		c.SweepDuration.Observe(seconds)
	}
}

func (c *Collectors) Scanned(n int) {
	if c == nil {
		return
	}
	c.TicketsScanned.Add(float64(n))
}

func (c *Collectors) ScannerAction(action string) {
	if c == nil {
		return
	}
	c.ScannerActions.WithLabelValues(action).Inc()
}

func (c *Collectors) ScannerFailure() {
	if c == nil {
		return
	}
	c.ScannerFailures.Inc()
}

func (c *Collectors) TicketEvent(event string) {
	if c == nil {
		return
	}
	c.TicketEvents.WithLabelValues(event).Inc()
}

func (c *Collectors) SanctionStep(step string) {
	if c == nil {
		return
	}
	c.SanctionSteps.WithLabelValues(step).Inc()
}

func (c *Collectors) Notification(kind string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Notifications.WithLabelValues(kind, outcome).Inc()
}
