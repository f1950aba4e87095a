// Package notify delivers swap and review notification events.
//
// Producers call Notifier.Notify, which never blocks and never fails: the
// event is queued for a Dispatcher worker that hands it to a Sink. Sink
// failures are logged and counted, and redelivery is the job of whatever
// consumes the sink (see Relay), not of the producer.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/metrics"
	"github.com/jredh-dev/greenswap/pkg/models"
)

// Notifier accepts fire-and-forget notification events.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Sink is the interface any delivery backend must implement.
type Sink interface {
	Emit(ctx context.Context, n models.Notification) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, models.Notification) {}

// DefaultEmitTimeout bounds a single Sink.Emit call.
const DefaultEmitTimeout = 10 * time.Second

// Dispatcher queues events in memory and emits them to a Sink from a
// single worker goroutine.
type Dispatcher struct {
	sink    Sink
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.Notification
	done   chan struct{}
}

// NewDispatcher starts a dispatcher with room for buffer queued events.
func NewDispatcher(sink Sink, buffer int, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		sink:    sink,
		log:     log,
		metrics: m,
		timeout: DefaultEmitTimeout,
		queue:   make(chan models.Notification, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues n. When the queue is full or the dispatcher is closed
// the event is dropped and logged.
func (d *Dispatcher) Notify(_ context.Context, n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(n, "dispatcher closed")
		return
	}
	select {
	case d.queue <- n:
	default:
		d.drop(n, "queue full")
	}
}

// Close stops accepting events and waits for queued ones to be emitted.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sink.Emit(ctx, n)
		cancel()
		if err != nil {
			d.log.Warn("notification emit failed",
				zap.String("notification_id", n.ID),
				zap.String("recipient", n.Recipient),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
			d.metrics.Notification("failed")
			continue
		}
		d.metrics.Notification("sent")
	}
}

func (d *Dispatcher) drop(n models.Notification, reason string) {
	d.log.Warn("notification dropped",
		zap.String("notification_id", n.ID),
		zap.String("recipient", n.Recipient),
		zap.String("kind", string(n.Kind)),
		zap.String("reason", reason))
	d.metrics.Notification("dropped")
}
