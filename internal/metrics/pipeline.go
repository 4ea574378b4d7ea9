package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline Prometheus metrics.
var (
	PipelineTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filedex",
			Name:      "pipeline_tasks_total",
			Help:      "Total number of pipeline task executions",
		},
		[]string{"stage", "status"}, // status: succeeded / retried / failed
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filedex",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	PipelineFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filedex",
			Name:      "pipeline_files_total",
			Help:      "Files that reached a terminal pipeline status",
		},
		[]string{"status"}, // ready / failed / cancelled
	)

	PipelineQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "filedex",
			Name:      "pipeline_queue_depth",
			Help:      "Tasks currently pending or running",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineTasksTotal)
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineFilesTotal)
	prometheus.MustRegister(PipelineQueueDepth)
	pipelineMetricsRegistered = true
}
