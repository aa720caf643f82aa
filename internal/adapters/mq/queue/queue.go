// Package queue buffers chat messages between the transport and the
// worker pool.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/danktime/pkg/metrics"
)

const defaultCapacity = 10000

// Message is one chat message waiting to be scored.
type Message struct {
	ID          uuid.UUID
	TransportID string
	ChatID      int64
	UserID      int64
	UserName    string
	Text        string
	// Timestamp is when the transport says the message was sent, in unix
	// seconds.
	Timestamp  int64
	ReceivedAt time.Time
}

// NewMessage returns a message with a fresh id.
func NewMessage(chatID, userID int64, userName, text string, timestamp int64) Message {
	return Message{
		ID:         uuid.New(),
		ChatID:     chatID,
		UserID:     userID,
		UserName:   userName,
		Text:       text,
		Timestamp:  timestamp,
		ReceivedAt: time.Now(),
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds m or returns ErrFull or ErrClosed.
	Enqueue(ctx context.Context, m Message) error
	// Dequeue returns the channel messages are delivered on. It is closed
	// once the queue is closed and drained.
	Dequeue() <-chan Message
	Len() int
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds m without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) error { //nolint:gocritic // Message is passed by value over the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.messages <- m:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.messages))
		return nil
	default:
		metrics.RecordQueueEnqueueError("full")
		return ErrFull
	}
}

// Dequeue returns the delivery channel.
func (q *InMemoryQueue) Dequeue() <-chan Message {
	return q.messages
}

// Len returns the number of buffered messages.
func (q *InMemoryQueue) Len() int {
	n := len(q.messages)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops accepting messages. Buffered messages are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
