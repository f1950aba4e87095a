package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/pkg/models"
)

// maxRelayAttempts is the number of delivery attempts before an event is
// routed to the DLQ.
const maxRelayAttempts = 3

// messageReader is the subset of *kafka.Reader used by the relay.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Relay reads events from the notification topic and delivers them to a
// Sink. Offsets are committed only after the event was delivered or routed
// to the DLQ, giving at-least-once delivery.
type Relay struct {
	reader  messageReader
	dlq     messageWriter
	sink    Sink
	log     *zap.Logger
	backoff time.Duration
}

// NewRelay creates a Relay connected to the given Kafka brokers.
func NewRelay(brokers []string, topic, dlqTopic, groupID string, sink Sink, log *zap.Logger) *Relay {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20, // 1 MiB
		CommitInterval: 0,       // explicit commits only
		StartOffset:    kafka.FirstOffset,
	})

	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Relay{reader: reader, dlq: dlq, sink: sink, log: log, backoff: 2 * time.Second}
}

// Run blocks, relaying events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("notify-relay: consuming")

	for {
		m, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		if err := r.deliver(ctx, m); err != nil {
			if ctx.Err() != nil {
				r.log.Info("notify-relay: shutting down, event left uncommitted", zap.ByteString("key", m.Key))
				return nil
			}
			// A later commit would skip this event, so stop and let the next
			// run fetch it again.
			return fmt.Errorf("event %s neither delivered nor dead-lettered: %w", m.Key, err)
		}

		if err := r.reader.CommitMessages(ctx, m); err != nil {
			r.log.Warn("notify-relay: commit failed, event may be redelivered", zap.Error(err))
		}
	}
}

// Close releases all Kafka resources.
func (r *Relay) Close() error {
	rerr := r.reader.Close()
	werr := r.dlq.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// deliver returns nil once the event was delivered or written to the DLQ.
func (r *Relay) deliver(ctx context.Context, m kafka.Message) error {
	var n models.Notification
	if err := json.Unmarshal(m.Value, &n); err != nil {
		return r.sendToDLQ(ctx, m, fmt.Errorf("unmarshal: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= maxRelayAttempts; attempt++ {
		lastErr = r.sink.Emit(ctx, n)
		if lastErr == nil {
			r.log.Debug("notify-relay: delivered",
				zap.String("notification_id", n.ID),
				zap.String("recipient", n.Recipient),
				zap.Int("attempt", attempt))
			return nil
		}

		r.log.Warn("notify-relay: delivery attempt failed",
			zap.String("notification_id", n.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < maxRelayAttempts {
			select {
			case <-time.After(time.Duration(attempt) * r.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return r.sendToDLQ(ctx, m, lastErr)
}

func (r *Relay) sendToDLQ(ctx context.Context, original kafka.Message, reason error) error {
	err := r.dlq.WriteMessages(ctx, kafka.Message{
		Key:   original.Key,
		Value: original.Value,
	})
	if err != nil {
		r.log.Error("notify-relay: could not write to DLQ",
			zap.ByteString("key", original.Key),
			zap.NamedError("reason", reason),
			zap.Error(err))
		return fmt.Errorf("write DLQ: %w", err)
	}
	r.log.Warn("notify-relay: routed event to DLQ", zap.ByteString("key", original.Key), zap.Error(reason))
	return nil
}
