package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ScansTotal              prometheus.Counter
	ResourcesEvaluatedTotal *prometheus.CounterVec // action=skip|delete|start-workflow
	DirectDeletesTotal      prometheus.Counter
	WorkflowsStartedTotal   prometheus.Counter
	ResolutionsTotal        *prometheus.CounterVec // outcome=extended|deleted|failed
	SignalsTotal            *prometheus.CounterVec // result=accepted|duplicate|late|not_found
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleanup_scans_total",
			Help: "Total completed scan passes over tagged resource groups",
		}),
		ResourcesEvaluatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanup_resources_evaluated_total",
				Help: "Total resource group evaluations by resulting action",
			},
			[]string{"action"},
		),
		DirectDeletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleanup_direct_deletes_total",
			Help: "Total expired resource groups deleted without a workflow",
		}),
		WorkflowsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "extension_workflows_started_total",
			Help: "Total extension workflow instances started",
		}),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extension_resolutions_total",
				Help: "Total workflow resolutions by outcome",
			},
			[]string{"outcome"},
		),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extension_signals_total",
				Help: "Total extend signal raises by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ResourcesEvaluatedTotal,
		m.DirectDeletesTotal,
		m.WorkflowsStartedTotal,
		m.ResolutionsTotal,
		m.SignalsTotal,
	)

	return m
}
