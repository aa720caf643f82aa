// Package dedupe tracks transport message ids so redelivered updates are
// scored only once.
package dedupe

import (
	"context"
	"strconv"
	"sync"
)

// DefaultMaxSize bounds the number of remembered ids.
const DefaultMaxSize = 50000

// Deduper records seen message ids.
type Deduper interface {
	// SeenAndRecord reports whether id was seen before and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a failed enqueue can be retried by the
	// transport.
	Unrecord(ctx context.Context, id string)

	Size() int
}

// MessageKey builds the id of a chat message. Transport message ids are
// only unique within one chat.
func MessageKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// inMemoryDeduper keeps ids in a map and, when bounded, a ring of insertion
// order so the oldest id is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> ring slot, -1 when unbounded
	ring    []string
	next    int
	maxSize int
}

// NewInMemoryDeduper returns a Deduper. A max size of zero or less makes it
// unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]string, 0, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize <= 0 {
		d.seen[id] = -1
		return false
	}

	if len(d.ring) < d.maxSize {
		d.seen[id] = len(d.ring)
		d.ring = append(d.ring, id)
		return false
	}

	// Full: overwrite the oldest slot unless Unrecord already freed it.
	old := d.ring[d.next]
	if slot, ok := d.seen[old]; ok && slot == d.next {
		delete(d.seen, old)
	}
	d.ring[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if slot >= 0 {
		d.ring[slot] = ""
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
