package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "m_cpulimit",
			Subsystem: "limiter",
			Name:      "invocations_total",
			Help:      "Limit invocations by enforcer and terminal state.",
		},
		[]string{"enforcer", "state"},
	)
	attachFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "m_cpulimit",
			Subsystem: "limiter",
			Name:      "attach_failures_total",
			Help:      "Descendant PIDs that could not be attached or signalled.",
		},
	)
	ownershipEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "m_cpulimit",
			Subsystem: "ownership",
			Name:      "entries_total",
			Help:      "Entries visited by ownership synchronization, by result.",
		},
		[]string{"result"},
	)
	nodeCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "m_cpulimit",
			Subsystem: "node",
			Name:      "cpu_percent",
			Help:      "CPU limit written to a cgroup node, 100 is one CPU.",
		},
		[]string{"node"},
	)
)

func init() {
	prometheus.MustRegister(invocations, attachFailures, ownershipEntries, nodeCPUPercent)
}

func ObserveInvocation(enforcer, state string) {
	invocations.WithLabelValues(enforcer, state).Inc()
}

func AddAttachFailures(n int) {
	if n > 0 {
		attachFailures.Add(float64(n))
	}
}

// ObserveOwnership 记录一次属主同步的结果
func ObserveOwnership(succeeded, skipped, failed int) {
	ownershipEntries.WithLabelValues("succeeded").Add(float64(succeeded))
	ownershipEntries.WithLabelValues("skipped").Add(float64(skipped))
	ownershipEntries.WithLabelValues("failed").Add(float64(failed))
}

func SetNodeCPUPercent(node string, percent float64) {
	nodeCPUPercent.WithLabelValues(node).Set(percent)
}

// WriteTextfile 将所有指标写入文件，供 node_exporter 的 textfile collector 采集
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
