package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts fulfillment pipeline outcomes: documents rendered,
// print jobs submitted, webhook deliveries processed.
type PipelineMetrics struct {
	documentsRendered *prometheus.CounterVec
	jobsSubmitted     *prometheus.CounterVec
	webhooksProcessed *prometheus.CounterVec
	renderFallbacks   prometheus.Counter
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics, registering them on
// first use.
func Pipeline() *PipelineMetrics {
	return PipelineWithEnvironment("")
}

// PipelineWithEnvironment registers pipeline metrics labeled with the
// deployment environment.
func PipelineWithEnvironment(environment string) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, environment)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest clears the singleton between tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

// NewPipelineMetrics registers pipeline metrics on the given registerer,
// bypassing the process-wide singleton. Tests use it to observe counters
// on an isolated registry.
func NewPipelineMetrics(registerer prometheus.Registerer, environment string) *PipelineMetrics {
	return newPipelineMetrics(registerer, environment)
}

func newPipelineMetrics(registerer prometheus.Registerer, environment string) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{"env": environment}

	documentsRendered := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "fulfillment_documents_rendered_total",
			Help:        "Rendered print documents by kind and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"kind", "outcome"},
	)
	jobsSubmitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "fulfillment_jobs_submitted_total",
			Help:        "Print job submissions by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	webhooksProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "fulfillment_webhooks_processed_total",
			Help:        "Inbound webhook deliveries by source and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"source", "outcome"},
	)
	renderFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "fulfillment_render_fallback_pages_total",
			Help:        "Story pages rendered as text-only fallbacks after an image fetch failure.",
			ConstLabels: constLabels,
		},
	)

	for _, collector := range []prometheus.Collector{documentsRendered, jobsSubmitted, webhooksProcessed, renderFallbacks} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return &PipelineMetrics{
		documentsRendered: documentsRendered,
		jobsSubmitted:     jobsSubmitted,
		webhooksProcessed: webhooksProcessed,
		renderFallbacks:   renderFallbacks,
	}
}

func (m *PipelineMetrics) DocumentRendered(kind, outcome string) {
	if m == nil {
		return
	}
	m.documentsRendered.WithLabelValues(kind, outcome).Inc()
}

func (m *PipelineMetrics) JobSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) WebhookProcessed(source, outcome string) {
	if m == nil {
		return
	}
	m.webhooksProcessed.WithLabelValues(source, outcome).Inc()
}

func (m *PipelineMetrics) RenderFallbackPage() {
	if m == nil {
		return
	}
	m.renderFallbacks.Inc()
}
