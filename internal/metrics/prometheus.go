package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/escobera/brod/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions  *prometheus.CounterVec
	generationGauge   prometheus.Gauge
	assignmentsTotal  prometheus.Counter
	assignedGauge     prometheus.Gauge
	revocationsTotal  prometheus.Counter
	workersGauge      prometheus.Gauge
	workerStarts      *prometheus.CounterVec
	workerStops       *prometheus.CounterVec
	acksTotal         *prometheus.CounterVec
	ackedOffset       *prometheus.GaugeVec
	commitsTotal      *prometheus.CounterVec
	committedOffset   *prometheus.GaugeVec
	unknownPartitions *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "brod" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "brod"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "state_transitions_total",
			Help:      "Total subscriber state transitions by from/to state.",
		}, []string{"from", "to"})

		p.generationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "generation",
			Help:      "Group generation of the most recent assignment event.",
		})

		p.assignmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "assignment_events_total",
			Help:      "Total assignment events received from the coordinator.",
		})

		p.assignedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "assigned_partitions",
			Help:      "Partition count of the most recent assignment event.",
		})

		p.revocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "revocations_total",
			Help:      "Total revocation events processed.",
		})

		p.workersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "workers_current",
			Help:      "Current number of live partition workers.",
		})

		p.workerStarts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "worker_starts_total",
			Help:      "Total partition worker starts by topic.",
		}, []string{"topic"})

		p.workerStops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "worker_stops_total",
			Help:      "Total partition worker stops by topic.",
		}, []string{"topic"})

		p.acksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "acks_total",
			Help:      "Total local acknowledgements by topic.",
		}, []string{"topic"})

		p.ackedOffset = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "acked_offset",
			Help:      "Latest acknowledged offset per partition.",
		}, []string{"topic", "partition"})

		p.commitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "commits_total",
			Help:      "Total commit requests sent to the coordinator by topic.",
		}, []string{"topic"})

		p.committedOffset = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "committed_offset",
			Help:      "Latest committed offset per partition.",
		}, []string{"topic", "partition"})

		p.unknownPartitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "progress",
			Name:      "unknown_partition_total",
			Help:      "Acks/commits addressed to partitions with no live worker.",
		}, []string{"op"})

		collectors := []prometheus.Collector{
			p.stateTransitions, p.generationGauge, p.assignmentsTotal,
			p.assignedGauge, p.revocationsTotal, p.workersGauge,
			p.workerStarts, p.workerStops, p.acksTotal, p.ackedOffset,
			p.commitsTotal, p.committedOffset, p.unknownPartitions,
		}
		for _, c := range collectors {
			// AlreadyRegisteredError is tolerated so two collectors can
			// share a registry.
			if err := p.reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (p *PrometheusCollector) RecordAssignmentsReceived(generation int32, partitions int) {
	p.ensureRegistered()
	p.assignmentsTotal.Inc()
	p.generationGauge.Set(float64(generation))
	p.assignedGauge.Set(float64(partitions))
}

func (p *PrometheusCollector) RecordRevocation(workers int) {
	p.ensureRegistered()
	p.revocationsTotal.Inc()
	p.assignedGauge.Set(0)
}

func (p *PrometheusCollector) RecordWorkerStarted(tp types.TopicPartition) {
	p.ensureRegistered()
	p.workersGauge.Inc()
	p.workerStarts.WithLabelValues(tp.Topic).Inc()
}

func (p *PrometheusCollector) RecordWorkerStopped(tp types.TopicPartition) {
	p.ensureRegistered()
	p.workersGauge.Dec()
	p.workerStops.WithLabelValues(tp.Topic).Inc()
}

func (p *PrometheusCollector) RecordAck(tp types.TopicPartition, offset int64) {
	p.ensureRegistered()
	p.acksTotal.WithLabelValues(tp.Topic).Inc()
	p.ackedOffset.WithLabelValues(tp.Topic, strconv.Itoa(int(tp.Partition))).Set(float64(offset))
}

func (p *PrometheusCollector) RecordCommit(tp types.TopicPartition, offset int64, generation int32) {
	p.ensureRegistered()
	p.commitsTotal.WithLabelValues(tp.Topic).Inc()
	p.committedOffset.WithLabelValues(tp.Topic, strconv.Itoa(int(tp.Partition))).Set(float64(offset))
}

func (p *PrometheusCollector) RecordUnknownPartition(op string, tp types.TopicPartition) {
	p.ensureRegistered()
	p.unknownPartitions.WithLabelValues(op).Inc()
}
