// Package testing provides test utilities for the brod library.
//
// It offers helpers for setting up test environments: an embedded NATS
// server with JetStream for integration tests, a logger that writes to the
// test log, and an in-process fake group coordinator for driving assignment
// and revocation scenarios deterministically. It follows Go's convention of
// providing testing utilities in a dedicated package (similar to
// net/http/httptest).
//
// Example usage:
//
//	import (
//	    "testing"
//	    brodtest "github.com/escobera/brod/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := brodtest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
