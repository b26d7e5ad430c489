// Package brod provides the group-membership-aware subscription layer of a
// distributed log consumer: it receives partition assignments from a consumer
// group coordinator, runs one worker per assigned partition, and tracks
// per-partition progress across group generations.
//
// # Quick Start
//
//	cfg := brod.SubscriberConfig{
//	    Client:   natsConn,
//	    GroupID:  "billing",
//	    Topics:   []string{"orders"},
//	    Callback: myCallback,
//	}
//
//	sub, err := brod.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sub.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Stop(context.Background())
//
// # Ack vs Commit
//
// The callback (or the integrator, asynchronously) reports progress through
// two operations with different durability:
//
//   - Ack: messages up to an offset are processed. Local flow control only;
//     the worker's fetch window advances, nothing leaves the process.
//   - Commit: ack plus a durable progress request sent to the group
//     coordinator, stamped with the generation current at processing time.
//     After a rebalance the coordinator discards requests carrying a stale
//     generation, which is what keeps at-least-once delivery from
//     double-counting progress across generations.
//
// # Concurrency model
//
// All subscriber state (worker map, generation, tracked offsets) is owned by
// a single actor goroutine reachable only through an internal mailbox; public
// operations enqueue and are processed strictly in order. Workers run
// concurrently with each other and with the subscriber, and only re-enter it
// through the ack/commit entry points.
//
// See the subpackages for the default worker (worker), message sources
// (source), the reference coordinator (coordinator), and optional assignment
// strategies (strategy).
package brod
