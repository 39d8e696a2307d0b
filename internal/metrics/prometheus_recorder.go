package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "longform"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	sections      *prom.CounterVec
	images        *prom.CounterVec
	outlineSource *prom.CounterVec
	retries       *prom.CounterVec
	swept         prom.Counter
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs the run metrics and registers them on reg.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual run stages",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   []float64{30, 60, 300, 600, 1200, 1800, 3600},
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		sections: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sections_total",
			Help:      "Generated sections by outcome",
		}, []string{"outcome"}),
		images: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Section illustrations by outcome",
		}, []string{"outcome"}),
		outlineSource: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "outline_source_total",
			Help:      "Outlines by the parse strategy that produced them",
		}, []string{"strategy"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Retried upstream calls by retry policy",
		}, []string{"policy"}),
		swept: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired session directories removed",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.runOutcome, pr.sections,
		pr.images, pr.outlineSource, pr.retries, pr.swept)
	return pr
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncSectionResult(degraded bool) {
	outcome := OutcomeSuccess
	if degraded {
		outcome = OutcomeDegraded
	}
	p.sections.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncImageResult(success bool) {
	outcome := OutcomeFailed
	if success {
		outcome = OutcomeSuccess
	}
	p.images.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncOutlineSource(strategy string) {
	p.outlineSource.WithLabelValues(strategy).Inc()
}

func (p *PrometheusRecorder) IncRetry(policy string) {
	p.retries.WithLabelValues(policy).Inc()
}

func (p *PrometheusRecorder) AddSessionsSwept(n int) {
	if n <= 0 {
		return
	}
	p.swept.Add(float64(n))
}
