package types

// State represents the subscriber lifecycle state.
//
// Normal progression:
//
//	StateUnassigned → StateAssigned → StateRevoking → StateUnassigned
//
// StateStopped is terminal; StateFailed is terminal and indicates a fatal
// worker startup failure during assignment reconciliation.
type State int

const (
	// StateUnassigned means no generation is set and the worker map is empty.
	StateUnassigned State = iota

	// StateAssigned means a generation is set and workers are running.
	StateAssigned

	// StateRevoking is the transient state during synchronous teardown of
	// all workers.
	StateRevoking

	// StateStopped means the subscriber has fully terminated.
	StateStopped

	// StateFailed means the subscriber terminated because a worker failed
	// to start; the whole subscription must be restarted by a supervisor.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnassigned:
		return "Unassigned"
	case StateAssigned:
		return "Assigned"
	case StateRevoking:
		return "Revoking"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
