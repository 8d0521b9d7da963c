// Package metrics exposes Prometheus collectors for the job queues, the
// Agent Client, and the Escalation Processor, following the counter/gauge
// naming and registration style of the example corpus's metrics packages.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector wafcore registers.
type Metrics struct {
	JobsLeasedTotal      *prometheus.CounterVec
	JobsCompletedTotal   *prometheus.CounterVec
	JobLeaseDuration     *prometheus.HistogramVec
	QueueDepth           *prometheus.GaugeVec
	AgentCallTotal       *prometheus.CounterVec
	AgentCallDuration    *prometheus.HistogramVec
	CircuitBreakerState  *prometheus.GaugeVec
	EscalationsCreated   prometheus.Counter
	SinkDeliveryTotal    *prometheus.CounterVec
	GrouperRunsTotal     prometheus.Counter
	GrouperGroupsCreated prometheus.Counter
	CampaignRunsTotal    prometheus.Counter
	CampaignsDetected    prometheus.Counter
}

// New creates a Metrics instance and registers its collectors with the
// default Prometheus registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// so tests can use a fresh prometheus.NewRegistry() instead of the global one.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsLeasedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafcore_jobs_leased_total",
				Help: "Total number of jobs leased by a worker pool.",
			},
			[]string{"queue"},
		),
		JobsCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafcore_jobs_completed_total",
				Help: "Total number of jobs that reached a terminal state.",
			},
			[]string{"queue", "outcome"},
		),
		JobLeaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wafcore_job_lease_duration_seconds",
				Help:    "Time from lease to terminal state for a job.",
				Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"queue"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wafcore_queue_depth",
				Help: "Number of non-terminal jobs currently in a queue.",
			},
			[]string{"queue", "status"},
		),
		AgentCallTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafcore_agent_call_total",
				Help: "Total number of Agent Client calls by agent and outcome.",
			},
			[]string{"agent", "outcome"},
		),
		AgentCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wafcore_agent_call_duration_seconds",
				Help:    "Agent Client call latency including retries.",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"agent"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wafcore_circuit_breaker_state",
				Help: "Circuit breaker state per agent: 0=closed, 1=half-open, 2=open.",
			},
			[]string{"agent"},
		),
		EscalationsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wafcore_escalations_created_total",
				Help: "Total number of escalations created from verdicts crossing the severity threshold.",
			},
		),
		SinkDeliveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafcore_sink_delivery_total",
				Help: "Total number of escalation sink delivery attempts by sink and outcome.",
			},
			[]string{"sink", "outcome"},
		),
		GrouperRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wafcore_grouper_runs_total",
				Help: "Total number of completed Grouper passes.",
			},
		),
		GrouperGroupsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wafcore_grouper_groups_created_total",
				Help: "Total number of Groups created across all Grouper passes.",
			},
		),
		CampaignRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wafcore_campaign_runs_total",
				Help: "Total number of completed campaign monitor passes.",
			},
		),
		CampaignsDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wafcore_campaigns_detected_total",
				Help: "Total number of cross-event campaigns reported by the monitor agent.",
			},
		),
	}

	registerer.MustRegister(
		m.JobsLeasedTotal,
		m.JobsCompletedTotal,
		m.JobLeaseDuration,
		m.QueueDepth,
		m.AgentCallTotal,
		m.AgentCallDuration,
		m.CircuitBreakerState,
		m.EscalationsCreated,
		m.SinkDeliveryTotal,
		m.GrouperRunsTotal,
		m.GrouperGroupsCreated,
		m.CampaignRunsTotal,
		m.CampaignsDetected,
	)

	return m
}
