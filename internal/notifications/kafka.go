package notifications

import (
	"context"
	"fmt"

	"hallbook/pkg/kafka"
	"hallbook/pkg/logger"
	"hallbook/pkg/middleware"
	"hallbook/pkg/model"
)

const (
	notificationSchemaVersion = "1"
	notificationSource        = "bookings"
)

// messagePublisher is the subset of *kafka.Producer the publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher puts notifications on the notification topic for the
// notifier worker. Records are keyed by booking so one booking's emails stay
// ordered.
type KafkaPublisher struct {
	producer messagePublisher
}

func NewKafkaPublisher(producer messagePublisher) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n model.Notification) error {
	key := n.Data.BookingID
	if key == "" {
		key = n.To
	}

	msg, err := kafka.NewMessage().
		WithKey(key).
		WithEventID(n.ID).
		WithEventType(string(n.Kind)).
		WithSource(notificationSource).
		WithSchemaVersion(notificationSchemaVersion).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithValue(n).
		Build()
	if err != nil {
		return fmt.Errorf("build notification message: %w", err)
	}
	return p.producer.Publish(ctx, msg)
}

// DeliveryHandler consumes the notification topic and hands each record to
// pub. Already-delivered events are skipped when sent is non-nil.
func DeliveryHandler(pub Publisher, sent SentLog, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var n model.Notification
		if err := msg.DecodeValue(&n); err != nil {
			return err
		}
		if n.ID == "" {
			n.ID = msg.GetEventID()
		}
		if n.To == "" {
			return kafka.NewPermanentError("notification has no recipient", nil).WithDetail("event_id", n.ID)
		}
		if !n.Kind.Valid() {
			return kafka.NewPermanentError(fmt.Sprintf("unknown notification kind %q", n.Kind), nil)
		}

		if sent != nil {
			delivered, err := sent.Delivered(ctx, n.ID)
			if err != nil {
				log.Warn("sent log lookup failed, delivering anyway", "notification_id", n.ID, "error", err)
			} else if delivered {
				log.Info("skipping already delivered notification", "notification_id", n.ID)
				return nil
			}
		}

		if err := pub.Publish(ctx, n); err != nil {
			return err
		}

		if sent != nil {
			if err := sent.MarkDelivered(ctx, n.ID); err != nil {
				log.Warn("failed to record delivered notification", "notification_id", n.ID, "error", err)
			}
		}
		log.Info("notification delivered",
			"notification_id", n.ID,
			"kind", n.Kind,
			"booking_id", n.Data.BookingID,
			"correlation_id", msg.GetCorrelationID(),
		)
		return nil
	}
}
