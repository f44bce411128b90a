package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/admitdesk/chatsync/internal/pubsub"
)

// ActivityLogger consumes the hub's bus events and logs them. It is the
// in-repo stand-in for the dashboard components (notification widgets,
// unread counters) that subscribe to the same topics.
type ActivityLogger struct {
	subscriber pubsub.Subscriber
}

// NewActivityLogger creates a logger reading from the given subscriber.
func NewActivityLogger(sub pubsub.Subscriber) *ActivityLogger {
	return &ActivityLogger{subscriber: sub}
}

// Start subscribes to the lifecycle and relay topics. It returns once the
// subscriptions are active; handlers run until ctx is canceled.
func (a *ActivityLogger) Start(ctx context.Context) error {
	for _, topic := range []string{pubsub.TopicConnected, pubsub.TopicDisconnected} {
		if err := a.subscriber.Subscribe(ctx, topic, a.handleLifecycle); err != nil {
			return err
		}
	}
	return a.subscriber.Subscribe(ctx, pubsub.TopicRelayed, a.handleRelayed)
}

func (a *ActivityLogger) handleLifecycle(ctx context.Context, msg pubsub.Message) error {
	var event struct {
		ConnectionID string `json:"connectionId"`
		UserID       string `json:"userId"`
	}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return err
	}

	slog.Info("connection lifecycle event",
		"topic", msg.Topic,
		"connID", event.ConnectionID,
		"userID", event.UserID,
	)
	return nil
}

func (a *ActivityLogger) handleRelayed(ctx context.Context, msg pubsub.Message) error {
	var event struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
	}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return err
	}

	slog.Info("message relayed",
		"conversationID", event.ConversationID,
		"messageID", event.MessageID,
		"senderID", msg.UserID,
	)
	return nil
}
