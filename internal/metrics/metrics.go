package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the call webhook and the
// task pipeline. All methods are safe on a nil receiver.
type PipelineMetrics struct {
	webhookTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	enqueuedTotal  *prometheus.CounterVec
	taskTotal      *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	tierChanges    *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealership",
			Subsystem: "voice",
			Name:      "webhook_events_total",
			Help:      "Total voice platform webhook events",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dealership",
			Subsystem: "voice",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of voice webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		enqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealership",
			Subsystem: "tasks",
			Name:      "enqueued_total",
			Help:      "Total tasks enqueued",
		}, []string{"task_type", "status"}),
		taskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealership",
			Subsystem: "tasks",
			Name:      "processed_total",
			Help:      "Total tasks processed by outcome",
		}, []string{"task_type", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dealership",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Task handler duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task_type"}),
		tierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealership",
			Subsystem: "leads",
			Name:      "tier_changes_total",
			Help:      "Lead tier assignments by new tier",
		}, []string{"tier", "source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.webhookLatency, m.enqueuedTotal, m.taskTotal, m.taskDuration, m.tierChanges)
	return m
}

func (m *PipelineMetrics) ObserveWebhook(eventType, status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *PipelineMetrics) ObserveEnqueue(taskType string, err error) {
	if m == nil {
		return
	}
	m.enqueuedTotal.WithLabelValues(taskType, statusLabel(err)).Inc()
}

func (m *PipelineMetrics) ObserveTask(taskType string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.taskTotal.WithLabelValues(taskType, statusLabel(err)).Inc()
	m.taskDuration.WithLabelValues(taskType).Observe(seconds)
}

func (m *PipelineMetrics) ObserveTierChange(tier, source string) {
	if m == nil {
		return
	}
	m.tierChanges.WithLabelValues(tier, source).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
