// Package events publishes upload notifications over watermill.
//
// In a single process the bus is a gochannel pub/sub; with brokers configured
// it is Kafka. Either way the payload is the JSON UploadCompleted document on
// TopicUploadCompleted.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// TopicUploadCompleted is the default topic for committed uploads.
const TopicUploadCompleted = "gradebook.upload.completed"

// UploadCompleted is the event payload.
type UploadCompleted struct {
	UploadID  uuid.UUID              `json:"upload_id"`
	TenantID  string                 `json:"tenant_id"`
	FileName  string                 `json:"file_name"`
	Report    gradebook.UploadReport `json:"report"`
	CreatedAt time.Time              `json:"created_at"`
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev UploadCompleted) error

// Bus publishes and consumes upload events. It implements gradebook.Publisher.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool // publisher and subscriber are the same gochannel
	topic      string
	logger     *slog.Logger
}

var _ gradebook.Publisher = (*Bus)(nil)

// NewInProcess returns a Bus on a gochannel pub/sub. Events published with
// no subscriber are dropped.
func NewInProcess(topic string, logger *slog.Logger) *Bus {
	if topic == "" {
		topic = TopicUploadCompleted
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger))
	return &Bus{publisher: ch, subscriber: ch, shared: true, topic: topic, logger: logger}
}

// NewKafka returns a Bus backed by Kafka brokers. group names the consumer
// group used by Consume.
func NewKafka(brokers []string, topic, group string, logger *slog.Logger) (*Bus, error) {
	if topic == "" {
		topic = TopicUploadCompleted
	}
	wlog := watermill.NewSlogLogger(logger)

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}

	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       brokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: group,
	}, wlog)
	if err != nil {
		pub.Close()
		return nil, fmt.Errorf("kafka subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, topic: topic, logger: logger}, nil
}

// Topic returns the topic events go to.
func (b *Bus) Topic() string {
	return b.topic
}

// UploadCompleted publishes a committed upload.
func (b *Bus) UploadCompleted(ctx context.Context, rec gradebook.UploadRecord) error {
	payload, err := json.Marshal(UploadCompleted{
		UploadID:  rec.ID,
		TenantID:  rec.TenantID,
		FileName:  rec.FileName,
		Report:    rec.Report,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("tenant_id", rec.TenantID)
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", b.topic, err)
	}
	return nil
}

// Consume delivers events to h until ctx is cancelled. Messages that fail to
// decode are logged and acked; handler errors nack the message.
func (b *Bus) Consume(ctx context.Context, h Handler) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}

	for msg := range messages {
		var ev UploadCompleted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			b.logger.Warn("dropping malformed event", "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}
		if err := h(msg.Context(), ev); err != nil {
			b.logger.Error("event handler failed", "message_id", msg.UUID, "error", err)
			msg.Nack()
			continue
		}
		msg.Ack()
	}
	return ctx.Err()
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	perr := b.publisher.Close()
	if !b.shared {
		if err := b.subscriber.Close(); err != nil && perr == nil {
			perr = err
		}
	}
	return perr
}

// AuditLog returns a Handler that writes one info line per upload.
func AuditLog(logger *slog.Logger) Handler {
	return func(ctx context.Context, ev UploadCompleted) error {
		logger.InfoContext(ctx, "audit: upload completed",
			"upload_id", ev.UploadID,
			"tenant_id", ev.TenantID,
			"file", ev.FileName,
			"students", ev.Report.ProcessedStudents,
			"assignments", ev.Report.ProcessedAssignments,
			"grades_created", ev.Report.GradesCreated,
			"grades_updated", ev.Report.GradesUpdated,
		)
		return nil
	}
}
