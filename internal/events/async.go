package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/auth_service/pkg/logging"
)

var (
	ErrQueueFull = errors.New("events: queue full")
	ErrClosed    = errors.New("events: publisher closed")
)

const (
	DefaultQueueSize      = 256
	DefaultPublishTimeout = 5 * time.Second
)

type queued struct {
	ctx   context.Context
	topic string
	key   string
	event any
}

// Async hands events to a single background worker so callers never wait on
// the broker. Events keep their enqueue order. When the queue is full the
// event is refused instead of blocking.
type Async struct {
	next    Publisher
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

func NewAsync(next Publisher, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	a := &Async{
		next:    next,
		timeout: timeout,
		queue:   make(chan queued, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// PublishEvent enqueues the event and returns at once. The publish keeps the
// caller's logger but not its cancellation.
func (a *Async) PublishEvent(ctx context.Context, topic, key string, event any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), topic: topic, key: key, event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queued ones to be sent.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		ctx, cancel := context.WithTimeout(q.ctx, a.timeout)
		if err := a.next.PublishEvent(ctx, q.topic, q.key, q.event); err != nil {
			logging.FromContext(q.ctx).Error("event_publish_failed", "topic", q.topic, "key", q.key, "error", err)
		}
		cancel()
	}
}
