// Package coordinator provides the reference group coordinator built on a
// NATS JetStream key-value bucket.
//
// It implements single-member group semantics: on Start it bumps a persisted
// generation counter, hands the member every partition of every subscribed
// topic, and resumes each partition after the last durably committed offset.
// Commit requests are applied asynchronously and requests stamped with a
// generation older than the current one are discarded.
//
// Multi-member balancing is out of scope here; the types.GroupCoordinator
// contract lets integrators plug a full balancing protocol in its place.
package coordinator
