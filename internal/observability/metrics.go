package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	providerCallTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerCooldown     *prometheus.GaugeVec
	providerQuotaUsed    *prometheus.GaugeVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	runTotal      *prometheus.CounterVec
	runIterations prometheus.Histogram

	swarmTaskTotal    *prometheus.CounterVec
	swarmTaskDuration prometheus.Histogram

	checkpointSaveDuration prometheus.Histogram
	checkpointLoadDuration prometheus.Histogram

	laneQueueSize    *prometheus.GaugeVec
	laneTaskTotal    *prometheus.CounterVec
	laneTaskDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			providerCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_call_total",
					Help: "Total LLM provider calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_call_duration_seconds",
					Help:    "LLM provider call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			providerCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "provider_cooldown",
					Help: "Whether a provider is currently exhausted (1) or usable (0).",
				},
				[]string{"provider"},
			),
			providerQuotaUsed: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "provider_quota_used",
					Help: "Calls used against the provider's daily quota.",
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			runTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engine_run_total",
					Help: "Total reasoning-loop runs by terminal status.",
				},
				[]string{"status"},
			),
			runIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "engine_run_iterations",
					Help:    "Iterations consumed per reasoning-loop run.",
					Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
				},
			),
			swarmTaskTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "swarm_task_total",
					Help: "Total swarm tasks by terminal status.",
				},
				[]string{"status"},
			),
			swarmTaskDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "swarm_task_duration_seconds",
					Help:    "Swarm task duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			checkpointSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "checkpoint_save_duration_seconds",
					Help:    "Checkpoint save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			checkpointLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "checkpoint_load_duration_seconds",
					Help:    "Checkpoint load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			laneQueueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "lane_queue_size",
					Help: "Tasks currently queued per execution lane.",
				},
				[]string{"lane"},
			),
			laneTaskTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lane_task_total",
					Help: "Total lane tasks by lane and status.",
				},
				[]string{"lane", "status"},
			),
			laneTaskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "lane_task_duration_seconds",
					Help:    "Lane task duration in seconds by lane.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
		}

		prometheus.MustRegister(
			m.providerCallTotal,
			m.providerCallDuration,
			m.providerCooldown,
			m.providerQuotaUsed,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.runTotal,
			m.runIterations,
			m.swarmTaskTotal,
			m.swarmTaskDuration,
			m.checkpointSaveDuration,
			m.checkpointLoadDuration,
			m.laneQueueSize,
			m.laneTaskTotal,
			m.laneTaskDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered registers all module metrics with the default registry.
// Safe to call from every package init path.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func Handler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordProviderCall records one provider call with its outcome.
func RecordProviderCall(provider, status string, duration time.Duration) {
	m := getMetrics()
	m.providerCallTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// SetProviderCooldown flags a provider as exhausted or usable.
func SetProviderCooldown(provider string, inCooldown bool) {
	v := 0.0
	if inCooldown {
		v = 1.0
	}
	getMetrics().providerCooldown.WithLabelValues(provider).Set(v)
}

// SetProviderQuotaUsed publishes the current daily usage counter.
func SetProviderQuotaUsed(provider string, used int) {
	getMetrics().providerQuotaUsed.WithLabelValues(provider).Set(float64(used))
}

// RecordToolExecution records one tool execution with its outcome.
func RecordToolExecution(tool, status string, duration time.Duration) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordRun records one reasoning-loop run.
func RecordRun(status string, iterations int) {
	m := getMetrics()
	m.runTotal.WithLabelValues(status).Inc()
	m.runIterations.Observe(float64(iterations))
}

// RecordSwarmTask records one swarm task.
func RecordSwarmTask(status string, duration time.Duration) {
	m := getMetrics()
	m.swarmTaskTotal.WithLabelValues(status).Inc()
	m.swarmTaskDuration.Observe(duration.Seconds())
}

// RecordCheckpointSave records a checkpoint save.
func RecordCheckpointSave(duration time.Duration) {
	getMetrics().checkpointSaveDuration.Observe(duration.Seconds())
}

// RecordCheckpointLoad records a checkpoint load.
func RecordCheckpointLoad(duration time.Duration) {
	getMetrics().checkpointLoadDuration.Observe(duration.Seconds())
}

// SetLaneQueueSize publishes the current queue depth for a lane.
func SetLaneQueueSize(lane string, size int) {
	getMetrics().laneQueueSize.WithLabelValues(lane).Set(float64(size))
}

// RecordLaneTask records one completed lane task.
func RecordLaneTask(lane string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	m := getMetrics()
	m.laneTaskTotal.WithLabelValues(lane, status).Inc()
	m.laneTaskDuration.WithLabelValues(lane).Observe(duration.Seconds())
}
