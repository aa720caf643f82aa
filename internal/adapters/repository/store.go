// Package repository persists chat snapshots.
package repository

import (
	"context"

	"github.com/okian/danktime/internal/domain/chat"
)

// Store saves and restores chat snapshots, one per chat id.
type Store interface {
	// Save inserts or replaces the snapshot of s.ID.
	Save(ctx context.Context, s chat.Snapshot) error
	// Load returns ErrNotFound for unknown chats.
	Load(ctx context.Context, chatID int64) (chat.Snapshot, error)
	// List returns every snapshot ordered by chat id.
	List(ctx context.Context) ([]chat.Snapshot, error)
	// Delete removes a chat. Unknown chats are not an error.
	Delete(ctx context.Context, chatID int64) error
	Close() error
}
