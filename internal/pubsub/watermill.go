package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"
)

// Bus implements Publisher and Subscriber on watermill's in-memory GoChannel.
// Everything in this process shares one Bus; a broker-backed implementation
// would satisfy the same interfaces.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
	tracer trace.Tracer
}

// NewBus creates an in-memory bus with tracing disabled.
func NewBus() *Bus {
	return NewTracedBus(noop.NewTracerProvider().Tracer("chatsync-pubsub"))
}

// NewTracedBus creates an in-memory bus that records a span per publish
// and per handler invocation on the given tracer.
func NewTracedBus(tracer trace.Tracer) *Bus {
	logger := watermill.NewStdLogger(false, false)
	ch := gochannel.NewGoChannel(gochannel.Config{}, logger)

	return &Bus{
		pub:    ch,
		sub:    ch,
		logger: logger,
		tracer: tracer,
	}
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	spanCtx, span := b.tracer.Start(ctx, "pubsub.publish."+msg.Topic,
		trace.WithAttributes(
			attribute.String("messaging.system", "watermill"),
			attribute.String("messaging.operation", "publish"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("user.id", msg.UserID),
			attribute.Int("messaging.message_payload_size_bytes", len(msg.Payload)),
		),
	)
	defer span.End()

	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wm.SetContext(spanCtx)
	wm.Metadata.Set(metaKeyUserID, msg.UserID)
	wm.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wm.Metadata.Set(k, v)
	}
	if err := b.pub.Publish(msg.Topic, wm); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Subscribe implements Subscriber. The handler runs on a background
// goroutine per topic; a handler error nacks the message and is logged.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			msg := fromWatermill(wm)
			spanCtx, span := b.tracer.Start(wm.Context(), "pubsub.process."+topic,
				trace.WithAttributes(
					attribute.String("messaging.system", "watermill"),
					attribute.String("messaging.operation", "process"),
					attribute.String("messaging.destination", topic),
					attribute.String("messaging.message_id", wm.UUID),
				),
			)
			if err := handler(spanCtx, msg); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				slog.Error("pubsub handler failed", "topic", topic, "msg_id", wm.UUID, "error", err)
				wm.Nack()
				continue
			}
			span.End()
			wm.Ack()
		}
		slog.Debug("subscription loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts the bus down and ends all subscription loops.
func (b *Bus) Close() error {
	return b.sub.Close()
}

func fromWatermill(wm *message.Message) Message {
	userID := wm.Metadata.Get(metaKeyUserID)
	topic := wm.Metadata.Get(metaKeyTopic)

	metadata := make(map[string]string)
	for k, v := range wm.Metadata {
		if k != metaKeyUserID && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:    topic,
		UserID:   userID,
		Payload:  wm.Payload,
		Metadata: metadata,
	}
}
