package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/pkg/metrics"
)

const defaultBusyTimeout = 5 * time.Second

// SQLiteStore keeps one row per chat holding its JSON snapshot.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	now         func() time.Time
}

// OpenSQLite opens or creates the database at path, applies pragmas and
// runs migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: defaultBusyTimeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := s.applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *SQLiteStore) applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=" + strconv.FormatInt(s.busyTimeout.Milliseconds(), 10) + ";",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Save upserts the snapshot.
func (s *SQLiteStore) Save(ctx context.Context, snap chat.Snapshot) error {
	defer observe("save", time.Now())

	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("save chat %d: %w", snap.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (id, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			snapshot   = excluded.snapshot,
			updated_at = excluded.updated_at`,
		snap.ID, string(data), s.now().UTC().Unix(),
	)
	if err != nil {
		metrics.RecordErrorByComponent("store", "save_failed")
		return fmt.Errorf("save chat %d: %w", snap.ID, err)
	}
	return nil
}

// Load returns the snapshot of chatID.
func (s *SQLiteStore) Load(ctx context.Context, chatID int64) (chat.Snapshot, error) {
	defer observe("load", time.Now())

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM chats WHERE id = ?`, chatID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Snapshot{}, fmt.Errorf("%w: %d", ErrNotFound, chatID)
	}
	if err != nil {
		return chat.Snapshot{}, fmt.Errorf("load chat %d: %w", chatID, err)
	}
	return chat.UnmarshalSnapshot([]byte(data))
}

// List returns all snapshots ordered by chat id.
func (s *SQLiteStore) List(ctx context.Context) ([]chat.Snapshot, error) {
	defer observe("list", time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT snapshot FROM chats ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []chat.Snapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snap, err := chat.UnmarshalSnapshot([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the row of chatID.
func (s *SQLiteStore) Delete(ctx context.Context, chatID int64) error {
	defer observe("delete", time.Now())

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
