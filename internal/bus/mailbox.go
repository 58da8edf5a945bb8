package bus

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// mailbox is a channel-backed event queue feeding a single subscriber
// goroutine. Sends are safe against concurrent Close calls.
type mailbox struct {
	// ch is the underlying channel used to queue events.
	ch chan Event

	// closed indicates whether the mailbox has been closed. Uses atomic
	// operations for lock-free reads.
	closed atomic.Bool

	// mu protects send operations to prevent sending to a closed channel.
	mu sync.RWMutex

	// closeOnce ensures Close() is executed exactly once.
	closeOnce sync.Once

	// busCtx is the context governing the bus lifecycle. When this context
	// is cancelled, receive operations terminate.
	busCtx context.Context
}

// newMailbox creates a new mailbox with the given capacity. If capacity is 0
// or negative, it defaults to 1 so the mailbox is always buffered.
func newMailbox(busCtx context.Context, capacity int) *mailbox {
	if capacity <= 0 {
		capacity = 1
	}

	return &mailbox{
		ch:     make(chan Event, capacity),
		busCtx: busCtx,
	}
}

// send attempts to enqueue an event. It blocks until either the event is
// accepted, the caller's context is cancelled, or the bus is shutting down.
// Returns true if the event was accepted.
func (m *mailbox) send(ctx context.Context, ev Event) bool {
	// Fast-path rejection when either context is already cancelled. The
	// select below still handles cancellation racing the send.
	if ctx.Err() != nil || m.busCtx.Err() != nil {
		return false
	}

	// Hold the read lock for the entire send to prevent a
	// send-on-closed-channel panic: Close takes the write lock before
	// closing the channel, so the channel cannot close while we hold the
	// read lock.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- ev:
		log.TraceS(ctx, "Mailbox send succeeded",
			"topic", ev.Topic(),
			"queue_len", len(m.ch))

		return true

	case <-ctx.Done():
		log.TraceS(ctx, "Mailbox send failed, caller context cancelled",
			"topic", ev.Topic())

		return false

	case <-m.busCtx.Done():
		log.TraceS(ctx, "Mailbox send failed, bus shutting down",
			"topic", ev.Topic())

		return false
	}
}

// receive returns an iterator over events in the mailbox. The iterator yields
// events as they arrive and stops when the given context is cancelled or the
// mailbox is closed and drained.
func (m *mailbox) receive(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			// Check the context first for deterministic shutdown
			// rather than racing in the select below.
			if ctx.Err() != nil {
				return
			}

			select {
			case ev, ok := <-m.ch:
				if !ok {
					return
				}

				if !yield(ev) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// close closes the mailbox, preventing further sends. Safe to call more than
// once.
func (m *mailbox) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		log.DebugS(m.busCtx, "Mailbox closing",
			"remaining_events", len(m.ch))

		m.closed.Store(true)
		close(m.ch)
	})
}

// drain returns an iterator over any events still queued after the mailbox
// was closed. If the mailbox is still open, the iterator yields nothing.
func (m *mailbox) drain() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if !m.closed.Load() {
			return
		}

		for {
			select {
			case ev, ok := <-m.ch:
				if !ok {
					return
				}

				if !yield(ev) {
					return
				}

			default:
				return
			}
		}
	}
}
