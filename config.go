package brod

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/escobera/brod/types"
)

// Maximum topic name length accepted by Validate. Matches the limit commonly
// enforced by log brokers so misconfigured names fail at startup, not at
// fetch time.
const maxTopicNameLen = 249

// SubscriberConfig is the immutable configuration supplied to New. Group ID,
// topics, and the callback are validated before startup; a validation failure
// aborts startup and the subscriber never reaches a running state.
type SubscriberConfig struct {
	// Client is the connection handle used by the default coordinator and
	// the default JetStream-backed message source. Required unless both a
	// custom WorkerFactory and a custom CoordinatorFactory are injected.
	Client *nats.Conn `yaml:"-"`

	// GroupID is the consumer group identifier. Required.
	GroupID string `yaml:"groupId"`

	// Topics is the non-empty list of candidate topic names. Required.
	Topics []string `yaml:"topics"`

	// Callback is the integrator's message-processing strategy. Required.
	// When MessageType is MessageTypeMessageSet it must also implement
	// types.MessageSetCallback.
	Callback types.MessageCallback `yaml:"-"`

	// InitData is an opaque payload passed to Callback.Init for every
	// started worker.
	InitData any `yaml:"-"`

	// MessageType selects single-message or batch callback dispatch.
	// Defaults to MessageTypeMessage.
	MessageType types.MessageType `yaml:"messageType"`

	// Consumer is optional per-worker consumption tuning, passed through to
	// the worker factory.
	Consumer types.ConsumerConfig `yaml:"consumer"`

	// Group is optional group-coordination tuning, passed through to the
	// coordinator factory.
	Group types.GroupConfig `yaml:"group"`

	// MailboxSize is the capacity of the subscriber's internal mailbox.
	MailboxSize int `yaml:"mailboxSize"`

	// ShutdownTimeout bounds worker teardown during internal shutdown paths
	// that have no caller-supplied context.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultConfig returns a SubscriberConfig with sensible defaults for the
// optional fields. Required fields (Client, GroupID, Topics, Callback) are
// left zero.
func DefaultConfig() SubscriberConfig {
	return SubscriberConfig{
		MessageType:     types.MessageTypeMessage,
		MailboxSize:     256,
		ShutdownTimeout: 10 * time.Second,
		Group: types.GroupConfig{
			SessionTimeout:     30 * time.Second,
			RebalanceTimeout:   30 * time.Second,
			PartitionsPerTopic: 1,
		},
	}
}

// SetDefaults fills in missing optional configuration values.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *SubscriberConfig) {
	defaults := DefaultConfig()

	if cfg.MailboxSize == 0 {
		cfg.MailboxSize = defaults.MailboxSize
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Group.SessionTimeout == 0 {
		cfg.Group.SessionTimeout = defaults.Group.SessionTimeout
	}
	if cfg.Group.RebalanceTimeout == 0 {
		cfg.Group.RebalanceTimeout = defaults.Group.RebalanceTimeout
	}
	if cfg.Group.PartitionsPerTopic == 0 {
		cfg.Group.PartitionsPerTopic = defaults.Group.PartitionsPerTopic
	}
	// Consumer defaults are owned by the worker package; zero values pass
	// through untouched.
}

// Validate checks the required fields and the topic list format.
//
// The client handle is validated separately in New because its necessity
// depends on which collaborators are injected via options.
//
// Returns:
//   - error: Validation error with the offending field, nil if valid
func (cfg *SubscriberConfig) Validate() error {
	if cfg.GroupID == "" {
		return types.ErrGroupIDRequired
	}
	if len(cfg.Topics) == 0 {
		return types.ErrTopicsRequired
	}
	for _, topic := range cfg.Topics {
		if err := validateTopic(topic); err != nil {
			return err
		}
	}
	if cfg.Callback == nil {
		return types.ErrCallbackRequired
	}
	if cfg.MessageType == types.MessageTypeMessageSet {
		if _, ok := cfg.Callback.(types.MessageSetCallback); !ok {
			return fmt.Errorf("%w: message_set mode requires a MessageSetCallback", types.ErrInvalidConfig)
		}
	}

	return nil
}

// validateTopic checks a single topic name: non-empty, bounded length, and
// restricted to [a-zA-Z0-9._-].
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic name", types.ErrInvalidTopic)
	}
	if len(topic) > maxTopicNameLen {
		return fmt.Errorf("%w: topic %q exceeds %d characters", types.ErrInvalidTopic, topic, maxTopicNameLen)
	}
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("%w: topic %q contains invalid character %q", types.ErrInvalidTopic, topic, r)
		}
	}

	return nil
}

// TestConfig returns a configuration with fast timings for tests. Required
// fields still have to be filled in by the caller.
func TestConfig() SubscriberConfig {
	cfg := DefaultConfig()
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Group.SessionTimeout = 2 * time.Second
	cfg.Group.RebalanceTimeout = 2 * time.Second

	return cfg
}
