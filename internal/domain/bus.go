package domain

import (
	"context"
)

// EventBus carries training requests and completions between the API and
// the worker. Supports Go channels or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" mapstructure:"type"`

	// Channel settings
	ChannelBufferSize int `json:"channelBufferSize" mapstructure:"channelBufferSize"`

	// NATS settings
	NATSUrl           string `json:"natsUrl" mapstructure:"natsUrl"`
	NATSToken         string `json:"-" mapstructure:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" mapstructure:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" mapstructure:"natsReconnectWait"` // seconds

	// NATSQueueGroup load-balances each topic across subscribers of the
	// same group. Empty delivers every message to every subscriber.
	NATSQueueGroup string `json:"natsQueueGroup" mapstructure:"natsQueueGroup"`
}

// Topic names for the training pipeline.
const (
	TopicTrainingRequested = "fraudguard.training.requested"
	TopicTrainingCompleted = "fraudguard.training.completed"
)

// TrainingTopic returns the request subject of one server instance.
// Sessions live in process memory, so requests are addressed to the
// instance that owns the session.
func TrainingTopic(instanceID string) string {
	return TopicTrainingRequested + "." + instanceID
}

// TrainingRequest is the payload published on TopicTrainingRequested.
type TrainingRequest struct {
	JobID     string `json:"jobId"`
	SessionID string `json:"sessionId"`
	ModelKind string `json:"modelKind"`
	TraceID   string `json:"traceId,omitempty"`
}

// TrainingCompleted is the payload published on TopicTrainingCompleted.
type TrainingCompleted struct {
	JobID     string    `json:"jobId"`
	SessionID string    `json:"sessionId"`
	RunID     string    `json:"runId,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}
