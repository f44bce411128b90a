// Package pubsub is the in-process event bus. The hub publishes connection
// lifecycle and relay events onto it; observers such as the activity logger
// (and, in the surrounding dashboard, notification widgets) subscribe to
// them without coupling to the hub.
package pubsub

import "context"

// Topics published by the chat subsystem.
const (
	TopicConnected    = "system.connection.connected"
	TopicDisconnected = "system.connection.disconnected"
	TopicRelayed      = "chat.message.relayed"
)

// Message is the envelope passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to.
	Topic string
	// UserID identifies the user the event originated from, when known.
	UserID string
	// Payload contains the event body, JSON-encoded.
	Payload []byte
	// Metadata carries arbitrary key-value context (timestamps, ids).
	Metadata map[string]string
}

// Handler processes one received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe registers handler for topic and returns immediately;
	// delivery runs in the background until ctx is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
