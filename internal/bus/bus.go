// Package bus is the in-process message bus the sync workers talk over: one
// buffered queue per recipient tag, shared by every sender.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by Send and Receive after Close.
	ErrClosed = errors.New("bus closed")
	// ErrUnknownTag is returned for a tag the bus does not route.
	ErrUnknownTag = errors.New("unknown tag")
)

// DefaultCapacity is the per-tag buffer used when New is given zero.
const DefaultCapacity = 256

// Bus routes messages by recipient tag. Sends to one tag are delivered in
// send order; nothing is promised across tags.
type Bus struct {
	queues   [numTags]chan Message
	sent     [numTags]atomic.Int64
	received [numTags]atomic.Int64
	done     chan struct{}
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
}

// New creates a bus with capacity buffered slots per tag.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{done: make(chan struct{})}
	for i := range b.queues {
		b.queues[i] = make(chan Message, capacity)
	}
	return b
}

// Send queues msg for tag. It returns immediately while the tag has buffer
// room and otherwise blocks until a slot frees, ctx ends or the bus closes.
func (b *Bus) Send(ctx context.Context, tag Tag, msg Message) error {
	if !tag.Valid() {
		return fmt.Errorf("send %s to %d: %w", msg.Kind, tag, ErrUnknownTag)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("send %s to %s: %w", msg.Kind, tag, ErrClosed)
	}

	select {
	case b.queues[tag] <- msg:
		b.sent[tag].Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return fmt.Errorf("send %s to %s: %w", msg.Kind, tag, ErrClosed)
	}
}

// Receive blocks until a message for tag arrives.
func (b *Bus) Receive(ctx context.Context, tag Tag) (Message, error) {
	if !tag.Valid() {
		return Message{}, fmt.Errorf("receive %d: %w", tag, ErrUnknownTag)
	}

	select {
	case msg := <-b.queues[tag]:
		b.received[tag].Add(1)
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-b.done:
		return Message{}, fmt.Errorf("receive %s: %w", tag, ErrClosed)
	}
}

// Close shuts the bus down. Pending and future Send/Receive calls fail with
// ErrClosed. It is safe to call more than once. Only the owner may call it,
// and only after every worker has acknowledged termination.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.done)

		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
	})
}

// Pending returns the number of undelivered messages for tag.
func (b *Bus) Pending(tag Tag) int {
	if !tag.Valid() {
		return 0
	}
	return len(b.queues[tag])
}

// TagStats counts traffic through one tag.
type TagStats struct {
	Sent     int64
	Received int64
}

// Stats returns per-tag traffic counters.
func (b *Bus) Stats() map[Tag]TagStats {
	out := make(map[Tag]TagStats, numTags)
	for _, t := range Tags() {
		out[t] = TagStats{Sent: b.sent[t].Load(), Received: b.received[t].Load()}
	}
	return out
}
