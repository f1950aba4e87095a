package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/pkg/models"
)

const (
	// Topic is where notification events are published for the external
	// dispatcher.
	Topic = "swap-notifications"

	// DLQTopic receives events the relay could not deliver.
	DLQTopic = "swap-notifications-dlq"

	// Collection is the Firestore collection notification documents land in.
	Collection = "notifications"
)

// LogSink writes events to the structured log. Useful in development and
// as a fallback when no transport is configured.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Emit(_ context.Context, n models.Notification) error {
	s.Log.Info("notification",
		zap.String("notification_id", n.ID),
		zap.String("recipient", n.Recipient),
		zap.String("sender", n.Sender),
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.String("related_swap", n.RelatedSwap))
	return nil
}

// messageWriter is the subset of *kafka.Writer used by the sink and relay.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes JSON-encoded events keyed by recipient, so one
// recipient's events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink publishing to topic on the given brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (s *KafkaSink) Emit(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.Recipient),
		Value: body,
	})
}

// Close releases the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// FirestoreSink stores each event as a document keyed by its ID, so
// redelivery of the same event overwrites rather than duplicates.
type FirestoreSink struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreSink creates a sink writing into collection.
func NewFirestoreSink(client *firestore.Client, collection string) *FirestoreSink {
	return &FirestoreSink{client: client, collection: collection}
}

func (s *FirestoreSink) Emit(ctx context.Context, n models.Notification) error {
	_, err := s.client.Collection(s.collection).Doc(n.ID).Set(ctx, notificationDoc(n))
	if err != nil {
		return fmt.Errorf("firestore set %s: %w", n.ID, err)
	}
	return nil
}

func notificationDoc(n models.Notification) map[string]interface{} {
	return map[string]interface{}{
		"recipient":    n.Recipient,
		"sender":       n.Sender,
		"kind":         string(n.Kind),
		"title":        n.Title,
		"body":         n.Body,
		"related_item": n.RelatedItem,
		"related_swap": n.RelatedSwap,
		"read":         false,
		"created_at":   n.CreatedAt,
	}
}
