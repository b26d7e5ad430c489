// Package worker provides the default per-partition worker implementation.
//
// A worker owns exactly one (topic, partition) pair. It pulls batches from a
// MessageSource, dispatches them to the integrator callback, and gates
// fetching on a bounded window of unacknowledged offsets. Acknowledgements
// arrive asynchronously through Ack and release window capacity.
//
// The Factory type implements types.WorkerFactory on top of any
// MessageSource and is what the subscriber uses unless a custom factory is
// injected.
package worker
