package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/bindhub/bindhub/internal/metrics"
)

// Subscriber receives raw lifecycle event payloads for a subject. The
// returned cancel function unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(subject string) (<-chan []byte, func(), error)
}

// NATSSubscriber is the production Subscriber, backed by a core NATS
// connection with unlimited reconnects.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

func (s *NATSSubscriber) Subscribe(subject string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg.Data:
		default:
			// Never block the NATS client callback.
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// Consumer drains a lifecycle subject and applies each event through the
// synchronizer with a bounded worker pool. Events for distinct accounts
// commute (each Apply is a single guarded statement keyed by account), so
// concurrent application is safe.
//
// Delivery is core NATS: an event dropped on a full buffer or failed at
// the store is gone, and state converges only when a later event for that
// account arrives. Deployments that need durable redelivery should feed
// the subject through JetStream.
type Consumer struct {
	sub     Subscriber
	sync    *Synchronizer
	subject string
	workers int
}

func NewConsumer(sub Subscriber, sync *Synchronizer, subject string, workers int) *Consumer {
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{sub: sub, sync: sync, subject: subject, workers: workers}
}

// Run consumes until ctx is canceled. Malformed payloads are logged and
// dropped; store failures are logged and the event is skipped, leaving the
// account out of sync until its next event.
func (c *Consumer) Run(ctx context.Context) error {
	ch, cancel, err := c.sub.Subscribe(c.subject)
	if err != nil {
		return err
	}
	defer cancel()

	slog.Info("lifecycle consumer started", "subject", c.subject, "workers", c.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case data, ok := <-ch:
					if !ok {
						return nil
					}
					c.handle(ctx, data)
				}
			}
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Consumer) handle(ctx context.Context, data []byte) {
	ev, err := ParseEvent(data)
	if err != nil {
		metrics.LifecycleEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		slog.Warn("dropping malformed lifecycle event", "error", err)
		return
	}
	if _, err := c.sync.Apply(ctx, ev); err != nil {
		slog.Error("lifecycle event failed", "kind", ev.Kind, "account_id", ev.AccountID, "error", err)
	}
}
