package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	runDuration      *prom.HistogramVec
	stageDuration    *prom.HistogramVec
	entryResults     *prom.CounterVec
	runOutcome       *prom.CounterVec
	notifyDeliveries *prom.CounterVec
	queueLength      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "matrixci",
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration by trigger",
			Buckets:   prom.DefBuckets,
		}, []string{"trigger"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "matrixci",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.entryResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "entry_results_total",
			Help:      "Matrix entry result counts by stage and outcome",
		}, []string{"stage", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "run_outcomes_total",
			Help:      "Pipeline run outcomes by final status",
		}, []string{"outcome"})
		pr.notifyDeliveries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "matrixci",
			Name:      "notify_deliveries_total",
			Help:      "Webhook notification delivery results",
		}, []string{"result"})
		pr.queueLength = prom.NewGauge(prom.GaugeOpts{
			Namespace: "matrixci",
			Name:      "queue_length",
			Help:      "Number of run jobs waiting in the daemon queue",
		})
		reg.MustRegister(pr.runDuration, pr.stageDuration, pr.entryResults, pr.runOutcome, pr.notifyDeliveries, pr.queueLength)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(trigger string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncEntryResult(stage string, result ResultLabel) {
	if p == nil || p.entryResults == nil {
		return
	}
	p.entryResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncNotifyDelivery(success bool) {
	if p == nil || p.notifyDeliveries == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.notifyDeliveries.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetQueueLength(n int) {
	if p == nil || p.queueLength == nil {
		return
	}
	p.queueLength.Set(float64(n))
}
