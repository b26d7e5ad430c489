// Package metrics provides the no-op MetricsCollector used when no collector
// is injected into a subscriber.
package metrics

import "github.com/escobera/brod/types"

// nopCollector discards all metrics.
type nopCollector struct{}

var _ types.MetricsCollector = (*nopCollector)(nil)

// NewNop returns a MetricsCollector that discards everything.
func NewNop() types.MetricsCollector {
	return nopCollector{}
}

func (nopCollector) RecordStateTransition(types.State, types.State)       {}
func (nopCollector) RecordAssignmentsReceived(int32, int)                 {}
func (nopCollector) RecordRevocation(int)                                 {}
func (nopCollector) RecordWorkerStarted(types.TopicPartition)             {}
func (nopCollector) RecordWorkerStopped(types.TopicPartition)             {}
func (nopCollector) RecordAck(types.TopicPartition, int64)                {}
func (nopCollector) RecordCommit(types.TopicPartition, int64, int32)      {}
func (nopCollector) RecordUnknownPartition(string, types.TopicPartition)  {}
