// Package bus implements a small in-process topic broker. Every stage of the
// review pipeline communicates exclusively through events published here, so
// each stage only ever sees the state snapshot carried by the event it
// receives.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBusStopped is returned when publishing to or subscribing on a bus
	// that has been stopped.
	ErrBusStopped = errors.New("bus is stopped")

	// ErrNoSubscribers is returned when an event is published on a topic
	// with no registered subscribers.
	ErrNoSubscribers = errors.New("no subscribers for topic")
)

// Event is a message published on the bus. Each event names the topic it is
// delivered on.
type Event interface {
	// Topic returns the topic the event is published on.
	Topic() string
}

// Handler consumes events delivered to a subscription. Handlers for the same
// subscription run sequentially in a dedicated goroutine; a returned error is
// logged, it does not affect delivery to other subscribers.
type Handler func(ctx context.Context, ev Event) error

// Config holds the tunable parameters of a Bus.
type Config struct {
	// QueueSize is the per-subscription mailbox capacity.
	QueueSize int
}

// DefaultConfig returns a Config with a reasonable mailbox capacity.
func DefaultConfig() *Config {
	return &Config{
		QueueSize: 64,
	}
}

// subscription couples a mailbox with the handler draining it.
type subscription struct {
	name    string
	mbox    *mailbox
	handler Handler
}

// Bus routes events from publishers to topic subscribers. Each subscription
// gets its own mailbox and goroutine, so a slow handler only backs up its own
// queue.
type Bus struct {
	cfg *Config

	// ctx governs the lifetime of all subscription goroutines.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	subs    map[string][]*subscription
	stopped bool

	wg sync.WaitGroup
}

// New creates a running Bus. Stop must be called to release its goroutines.
func New(cfg *Config) *Bus {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string][]*subscription),
	}
}

// Subscribe registers a handler for a topic. The name identifies the
// subscriber in logs. Events are delivered to the handler one at a time, in
// publish order.
func (b *Bus) Subscribe(topic, name string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrBusStopped
	}

	sub := &subscription{
		name:    name,
		mbox:    newMailbox(b.ctx, b.cfg.QueueSize),
		handler: handler,
	}
	b.subs[topic] = append(b.subs[topic], sub)

	b.wg.Add(1)
	go b.deliverLoop(topic, sub)

	log.DebugS(b.ctx, "Subscription registered",
		"topic", topic,
		"subscriber", name)

	return nil
}

// deliverLoop drains a subscription mailbox until the bus stops, then logs
// any undelivered events.
func (b *Bus) deliverLoop(topic string, sub *subscription) {
	defer b.wg.Done()

	for ev := range sub.mbox.receive(b.ctx) {
		if err := sub.handler(b.ctx, ev); err != nil {
			log.ErrorS(b.ctx, "Event handler failed", err,
				"topic", topic,
				"subscriber", sub.name)
		}
	}

	// The bus is shutting down. Anything left in the mailbox is a dead
	// letter.
	sub.mbox.close()
	for ev := range sub.mbox.drain() {
		log.WarnS(b.ctx, "Dropping undelivered event", nil,
			"topic", ev.Topic(),
			"subscriber", sub.name)
	}
}

// Publish delivers an event to every subscriber of its topic. It blocks while
// subscriber mailboxes are full, honoring the caller's context. Publishing on
// a topic nobody subscribes to is an error so the caller can surface the
// wiring mistake instead of silently losing the event.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return ErrBusStopped
	}
	subs := b.subs[ev.Topic()]
	b.mu.RUnlock()

	if len(subs) == 0 {
		log.WarnS(ctx, "Event has no subscribers", nil,
			"topic", ev.Topic())

		return fmt.Errorf("%w: %s", ErrNoSubscribers, ev.Topic())
	}

	for _, sub := range subs {
		if !sub.mbox.send(ctx, ev) {
			if err := ctx.Err(); err != nil {
				return err
			}

			return ErrBusStopped
		}
	}

	log.TraceS(ctx, "Event published",
		"topic", ev.Topic(),
		"subscribers", len(subs))

	return nil
}

// Stop shuts the bus down and waits for all subscription goroutines to exit,
// up to the given context's deadline. Pending events are dropped with a
// warning.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.InfoS(ctx, "Bus stopped")
		return nil

	case <-ctx.Done():
		log.WarnS(ctx, "Bus shutdown timed out", nil)
		return ctx.Err()
	}
}
