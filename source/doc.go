// Package source provides MessageSource implementations for partition
// workers.
//
// Two sources are included:
//   - Static: an in-memory source for tests and examples
//   - JetStream: the production source reading partitioned subjects from a
//     NATS JetStream stream
//
// Both expose the same pull contract: Fetch returns up to max messages of a
// (topic, partition) pair starting at the given offset, blocking until data
// is available or the context is done.
package source
