package brod

import (
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/escobera/brod/internal/metrics"
	"github.com/escobera/brod/types"
)

// Option configures a Subscriber with optional dependencies.
type Option func(*subscriberOptions)

// CoordinatorFactory constructs the group coordinator collaborator for a
// subscriber. The default factory builds the reference JetStream KV
// coordinator from the coordinator package.
type CoordinatorFactory func(conn *nats.Conn, groupID string, topics []string, cfg types.GroupConfig) (types.GroupCoordinator, error)

// subscriberOptions holds optional Subscriber configuration.
type subscriberOptions struct {
	logger        types.Logger
	metrics       types.MetricsCollector
	workerFactory types.WorkerFactory
	source        types.MessageSource
	coordFactory  CoordinatorFactory
	assigner      types.PartitionAssigner
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	sub, err := brod.New(cfg, brod.WithLogger(logger))
func WithLogger(logger types.Logger) Option {
	return func(o *subscriberOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for New
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *subscriberOptions) {
		o.metrics = metrics
	}
}

// WithPrometheusMetrics installs the built-in Prometheus-backed metrics
// collector. Overrides WithMetrics when both are supplied later in the
// option list.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	sub, err := brod.New(cfg, brod.WithPrometheusMetrics(reg))
func WithPrometheusMetrics(reg prometheus.Registerer) Option {
	return func(o *subscriberOptions) {
		o.metrics = metrics.NewPrometheus(reg, "brod")
	}
}

// WithWorkerFactory sets a custom worker factory, replacing the default
// MessageSource-backed worker implementation. Mainly useful for tests and
// for integrators that own their consume loop.
//
// Parameters:
//   - factory: WorkerFactory implementation
//
// Returns:
//   - Option: Functional option for New
func WithWorkerFactory(factory types.WorkerFactory) Option {
	return func(o *subscriberOptions) {
		o.workerFactory = factory
	}
}

// WithMessageSource sets the message source used by the default worker
// factory. Ignored when WithWorkerFactory is also supplied.
//
// Parameters:
//   - src: MessageSource implementation
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	src := source.NewStatic()
//	sub, err := brod.New(cfg, brod.WithMessageSource(src))
func WithMessageSource(src types.MessageSource) Option {
	return func(o *subscriberOptions) {
		o.source = src
	}
}

// WithCoordinatorFactory sets a custom group coordinator factory, replacing
// the reference JetStream KV coordinator.
//
// Parameters:
//   - factory: CoordinatorFactory building the coordinator collaborator
//
// Returns:
//   - Option: Functional option for New
func WithCoordinatorFactory(factory CoordinatorFactory) Option {
	return func(o *subscriberOptions) {
		o.coordFactory = factory
	}
}

// WithPartitionAssigner installs a custom partition-assignment strategy,
// enabling the AssignPartitions extension point. Without it,
// AssignPartitions fails with ErrNotImplemented; it never silently returns
// an empty plan.
//
// Parameters:
//   - assigner: PartitionAssigner implementation (see the strategy package)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	sub, err := brod.New(cfg, brod.WithPartitionAssigner(strategy.NewRange()))
func WithPartitionAssigner(assigner types.PartitionAssigner) Option {
	return func(o *subscriberOptions) {
		o.assigner = assigner
	}
}
