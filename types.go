package brod

import "github.com/escobera/brod/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which contains the actual implementations.
//
// This pattern avoids import cycles by letting internal packages depend on
// `types` without depending on the root `brod` package, while still providing
// the convenient `brod.TopicPartition`, `brod.Logger`, etc. for users.
type (
	State               = types.State
	TopicPartition      = types.TopicPartition
	PartitionAssignment = types.PartitionAssignment
	CommitRequest       = types.CommitRequest
	OffsetCommit        = types.OffsetCommit
	Message             = types.Message
	MessageSet          = types.MessageSet
	MessageType         = types.MessageType
	HandleResult        = types.HandleResult
	InitInfo            = types.InitInfo
	CommitFunc          = types.CommitFunc
	ConsumerConfig      = types.ConsumerConfig
	GroupConfig         = types.GroupConfig
)

// Re-export interfaces from the internal types package for convenience.
type (
	MessageCallback    = types.MessageCallback
	MessageSetCallback = types.MessageSetCallback
	Worker             = types.Worker
	WorkerFactory      = types.WorkerFactory
	MessageSource      = types.MessageSource
	GroupCoordinator   = types.GroupCoordinator
	GroupMember        = types.GroupMember
	PartitionAssigner  = types.PartitionAssigner
	MetricsCollector   = types.MetricsCollector
	Logger             = types.Logger
)

// Re-export constants from the internal types package.
const (
	GenerationNone = types.GenerationNone

	MessageTypeMessage    = types.MessageTypeMessage
	MessageTypeMessageSet = types.MessageTypeMessageSet

	ResultContinue = types.ResultContinue
	ResultAck      = types.ResultAck
	ResultCommit   = types.ResultCommit

	StateUnassigned = types.StateUnassigned
	StateAssigned   = types.StateAssigned
	StateRevoking   = types.StateRevoking
	StateStopped    = types.StateStopped
	StateFailed     = types.StateFailed
)
