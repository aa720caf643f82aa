package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/danktime/internal/domain/chat"
)

// MemoryStore keeps encoded snapshots in a map. Snapshots are stored as
// JSON so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	chats  map[int64][]byte
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[int64][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, s chat.Snapshot) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("save chat %d: %w", s.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.chats[s.ID] = data
	return nil
}

func (m *MemoryStore) Load(_ context.Context, chatID int64) (chat.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.chats[chatID]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return chat.Snapshot{}, ErrClosed
	}
	if !ok {
		return chat.Snapshot{}, fmt.Errorf("%w: %d", ErrNotFound, chatID)
	}
	return chat.UnmarshalSnapshot(data)
}

func (m *MemoryStore) List(_ context.Context) ([]chat.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	ids := make([]int64, 0, len(m.chats))
	for id := range m.chats {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]chat.Snapshot, 0, len(ids))
	for _, id := range ids {
		s, err := chat.UnmarshalSnapshot(m.chats[id])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.chats, chatID)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
