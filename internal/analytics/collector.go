package analytics

import (
	"context"
	"log/slog"

	"github.com/cascadeir/cascade/pkg/kafka"
)

// Collector buffers events and publishes them from a single goroutine.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan interface{}
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector wraps a Kafka producer with an in-memory event buffer.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan interface{}, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publishing loop. It runs until ctx is cancelled or the
// event channel closes.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.producer.Publish(ctx, kafka.Event{
					Key:   "analytics",
					Value: event,
				}); err != nil {
					c.logger.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Record enqueues an event without blocking; full buffers drop the event.
func (c *Collector) Record(event interface{}) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics buffer full, dropping event")
	}
}

// Close stops the loop after the buffer drains and closes the producer.
func (c *Collector) Close() error {
	close(c.eventCh)
	<-c.done
	return c.producer.Close()
}
