// Package event carries in-process notifications between the scanner,
// background jobs, and the API.
package event

import (
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	ScanCompleted      Type = "scan.completed"
	ReconcileCompleted Type = "reconcile.completed"
	DedupeCompleted    Type = "dedupe.completed"
	WishlistCompleted  Type = "wishlist.completed"
	JobFailed          Type = "job.failed"
)

// AllTypes lists every event type the bus routes.
var AllTypes = []Type{ScanCompleted, ReconcileCompleted, DedupeCompleted, WishlistCompleted, JobFailed}

// Event represents something that happened in the system.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler processes an event.
type Handler func(Event)

// Bus is an in-process event bus backed by a buffered channel. It also keeps
// the most recent dispatched events for inspection.
type Bus struct {
	ch      chan Event
	mu      sync.RWMutex
	subs    map[Type][]Handler
	logger  *slog.Logger
	done    chan struct{}
	stopped bool

	histMu  sync.Mutex
	history []Event
	histCap int
}

// NewBus creates an event bus with the given buffer size.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:      make(chan Event, bufSize),
		subs:    make(map[Type][]Handler),
		logger:  logger.With(slog.String("component", "event-bus")),
		done:    make(chan struct{}),
		histCap: 50,
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish queues an event without blocking. The event is dropped with a
// warning when the buffer is full. A nil Bus discards events.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", "type", string(e.Type))
	}
}

// Start drains the channel and dispatches events until Stop is called.
// Run it in its own goroutine.
func (b *Bus) Start() {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.done:
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// Stop makes Start return once the buffer is drained.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.stopped {
		b.stopped = true
		close(b.done)
	}
}

// Recent returns up to n dispatched events, newest first.
func (b *Bus) Recent(n int) []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]Event, 0, n)
	for i := len(b.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, b.history[i])
	}
	return out
}

func (b *Bus) dispatch(e Event) {
	b.record(e)

	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
				}
			}()
			h(e)
		}()
	}
}

func (b *Bus) record(e Event) {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	b.history = append(b.history, e)
	if len(b.history) > b.histCap {
		b.history = b.history[len(b.history)-b.histCap:]
	}
}
