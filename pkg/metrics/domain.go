package metrics

import "github.com/prometheus/client_golang/prometheus"

// Domain holds the payment-pipeline counters, separate from the standard HTTP
// metrics middleware in this package. A nil *Domain is valid and counts nothing,
// which keeps wiring optional in tests.
type Domain struct {
	eventsProcessed *prometheus.CounterVec
	jobsClaimed     prometheus.Counter
	jobsFailed      *prometheus.CounterVec
	jobsReaped      prometheus.Counter
}

func NewDomain(r prometheus.Registerer) *Domain {
	d := &Domain{
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "paysync",
			Name:      "events_processed_total",
			Help:      "Payment events processed, partitioned by pipeline outcome.",
		}, []string{"outcome"}),
		jobsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "paysync",
			Name:      "jobs_claimed_total",
			Help:      "Jobs claimed by workers.",
		}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "paysync",
			Name:      "jobs_failed_total",
			Help:      "Job failures, partitioned by whether the failure was terminal.",
		}, []string{"terminal"}),
		jobsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "paysync",
			Name:      "jobs_reaped_total",
			Help:      "Stale processing jobs reset to pending by the reaper.",
		}),
	}
	r.MustRegister(d.eventsProcessed, d.jobsClaimed, d.jobsFailed, d.jobsReaped)
	return d
}

func (d *Domain) ObserveOutcome(outcome string) {
	if d == nil {
		return
	}
	d.eventsProcessed.WithLabelValues(outcome).Inc()
}

func (d *Domain) ObserveClaim() {
	if d == nil {
		return
	}
	d.jobsClaimed.Inc()
}

func (d *Domain) ObserveFailure(terminal bool) {
	if d == nil {
		return
	}
	label := "false"
	if terminal {
		label = "true"
	}
	d.jobsFailed.WithLabelValues(label).Inc()
}

func (d *Domain) ObserveReaped(n int64) {
	if d == nil {
		return
	}
	d.jobsReaped.Add(float64(n))
}
