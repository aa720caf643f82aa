// Package service owns the chat registry. It serializes every operation on
// a chat behind that chat's lock, feeds transport messages through the
// queue and worker pool, and persists chats that changed.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/okian/danktime/internal/adapters/mq/queue"
	"github.com/okian/danktime/internal/adapters/mq/worker"
	"github.com/okian/danktime/internal/adapters/repository"
	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/internal/domain/clock"
	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/internal/domain/dedupe"
	"github.com/okian/danktime/internal/domain/leaderboard"
	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
)

type chatEntry struct {
	mu    sync.Mutex
	chat  *chat.Chat
	dirty bool
}

// Service is the chat registry and message intake.
type Service struct {
	mu    sync.RWMutex
	chats map[int64]*chatEntry

	store        repository.Store
	deduper      dedupe.Deduper
	queue        *queue.InMemoryQueue
	pool         *worker.Pool
	poolCancel   context.CancelFunc
	sender       worker.Sender
	plugins      *plugin.Host
	extraPlugins []plugin.Plugin
	clock        clock.Clock

	workerCount     int
	queueSize       int
	dedupeSize      int
	defaultTimezone string

	// persistMu keeps saves of the same chat in snapshot order.
	persistMu sync.Mutex

	started bool
	logger  logger.Logger
}

// New constructs a Service. Without WithStore chats live in memory only.
func New(opts ...Option) *Service {
	s := &Service{
		chats:           make(map[int64]*chatEntry),
		store:           repository.NewMemoryStore(),
		clock:           clock.System{},
		workerCount:     runtime.NumCPU(),
		queueSize:       10000,
		dedupeSize:      dedupe.DefaultMaxSize,
		defaultTimezone: chat.DefaultTimezone,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.plugins = plugin.NewHost(metricsPlugin{}, auditPlugin{logger: s.logger.Named("audit")})
	for _, p := range s.extraPlugins {
		s.plugins.Register(p)
	}
	return s
}

// SetSender sets the reply sink. It must be called before Start.
func (s *Service) SetSender(sender worker.Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// Start restores persisted chats and starts the worker pool. The pool
// outlives ctx; it runs until Stop has drained the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting dank time service...")

	snapshots, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}
	for _, snap := range snapshots {
		c, err := chat.FromSnapshot(snap, s.chatOptions()...)
		if err != nil {
			s.logger.Error(ctx, "skipping unreadable chat", logger.Int64("chat_id", snap.ID), logger.Error(err))
			metrics.RecordErrorByComponent("service", "restore_failed")
			continue
		}
		c.GenerateRandomDankTimes()
		s.chats[c.ID()] = &chatEntry{chat: c}
	}
	metrics.UpdateActiveChats(len(s.chats))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.queue, s, s.sender,
		worker.WithWorkerCount(s.workerCount),
		worker.WithLogger(s.logger.Named("worker")),
	)
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.poolCancel = cancel
	s.pool.Start(poolCtx)

	s.started = true
	s.logger.Info(ctx, "dank time service started",
		logger.Int("chats", len(s.chats)),
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop drains the queue, persists changed chats and closes the store.
// Callers stop every producer (transport, scheduler) before calling it.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	q, pool, cancel := s.queue, s.pool, s.poolCancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping dank time service...")

	var errs []error
	if err := q.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	cancel()
	if err := s.PersistDirty(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info(ctx, "dank time service stopped")
	return errors.Join(errs...)
}

func (s *Service) chatOptions() []chat.Option {
	return []chat.Option{
		chat.WithTrigger(s.plugins),
		chat.WithClock(s.clock),
		chat.WithLogger(s.logger.Named("chat")),
	}
}

func (s *Service) newChat(ctx context.Context, chatID int64) (*chat.Chat, error) {
	opts := s.chatOptions()
	settings, err := chat.NewSettings(s.defaultTimezone)
	if err != nil {
		s.logger.Warn(ctx, "invalid default timezone, using built-in default",
			logger.String("timezone", s.defaultTimezone), logger.Error(err))
	} else {
		opts = append(opts, chat.WithSettings(settings))
	}

	c, err := chat.New(chatID, opts...)
	if err != nil {
		return nil, err
	}
	c.GenerateRandomDankTimes()
	return c, nil
}

// entry returns the registry entry of chatID, creating the chat when
// create is set.
func (s *Service) entry(ctx context.Context, chatID int64, create bool) (*chatEntry, error) {
	s.mu.RLock()
	e, ok := s.chats[chatID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: %d", repository.ErrNotFound, chatID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.chats[chatID]; ok {
		return e, nil
	}
	c, err := s.newChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	e = &chatEntry{chat: c, dirty: true}
	s.chats[chatID] = e
	metrics.UpdateActiveChats(len(s.chats))
	s.logger.Info(ctx, "chat created", logger.Int64("chat_id", chatID))
	return e, nil
}

func (s *Service) do(ctx context.Context, chatID int64, create bool, fn func(c *chat.Chat) ([]string, error)) ([]string, error) {
	e, err := s.entry(ctx, chatID, create)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out, err := fn(e.chat)
	e.dirty = true
	return out, err
}

// Update runs fn on an existing chat under its lock and marks the chat as
// changed.
func (s *Service) Update(ctx context.Context, chatID int64, fn func(c *chat.Chat) []string) ([]string, error) {
	return s.do(ctx, chatID, false, func(c *chat.Chat) ([]string, error) {
		return fn(c), nil
	})
}

// ChatIDs lists the registered chats in ascending order.
func (s *Service) ChatIDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Submit deduplicates and enqueues a transport message. transportID may be
// empty when the transport has no stable id.
func (s *Service) Submit(ctx context.Context, transportID string, m queue.Message) error { //nolint:gocritic // Message is passed by value over the channel
	s.mu.RLock()
	started, q, d := s.started, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if transportID != "" && d.SeenAndRecord(ctx, transportID) {
		metrics.RecordMessageDuplicate()
		return fmt.Errorf("%w: %s", ErrDuplicate, transportID)
	}
	m.TransportID = transportID
	if err := q.Enqueue(ctx, m); err != nil {
		if transportID != "" {
			d.Unrecord(ctx, transportID)
		}
		return fmt.Errorf("submit message: %w", err)
	}
	return nil
}

// ProcessMessage runs a queued message through its chat. It implements
// worker.Processor.
func (s *Service) ProcessMessage(ctx context.Context, m queue.Message) ([]string, error) { //nolint:gocritic // Message is passed by value over the channel
	out, err := s.do(ctx, m.ChatID, true, func(c *chat.Chat) ([]string, error) {
		return c.ProcessMessage(ctx, m.UserID, m.UserName, m.Text, m.Timestamp), nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMessageProcessed()
	return out, nil
}

// SetRunning starts or stops the game in a chat, creating it if needed.
// It reports whether the state changed.
func (s *Service) SetRunning(ctx context.Context, chatID int64, running bool) (bool, error) {
	changed := false
	_, err := s.do(ctx, chatID, true, func(c *chat.Chat) ([]string, error) {
		changed = c.Running() != running
		c.SetRunning(running)
		return nil, nil
	})
	return changed, err
}

// Leaderboard renders the leaderboard of a chat and stores it for the next
// diff.
func (s *Service) Leaderboard(ctx context.Context, chatID int64) (string, error) {
	out, err := s.do(ctx, chatID, true, func(c *chat.Chat) ([]string, error) {
		return []string{c.GenerateLeaderboard(false)}, nil
	})
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// ChatLeaderboard returns the current standings without touching the diff
// state. Unknown chats yield repository.ErrNotFound.
func (s *Service) ChatLeaderboard(ctx context.Context, chatID int64) (*leaderboard.Leaderboard, error) {
	e, err := s.entry(ctx, chatID, false)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chat.Leaderboard(), nil
}

// RequestReset asks userID to confirm a leaderboard reset.
func (s *Service) RequestReset(ctx context.Context, chatID, userID int64) error {
	_, err := s.do(ctx, chatID, true, func(c *chat.Chat) ([]string, error) {
		c.AwaitResetConfirmation(userID)
		return nil, nil
	})
	return err
}

// DankTimes returns the normal and today's random dank times of a chat.
func (s *Service) DankTimes(ctx context.Context, chatID int64) (normal, random []*danktime.DankTime, err error) {
	e, err := s.entry(ctx, chatID, true)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chat.DankTimes(), e.chat.RandomDankTimes(), nil
}

// AddDankTime adds or replaces a dank time.
func (s *Service) AddDankTime(ctx context.Context, chatID int64, dt *danktime.DankTime) error {
	_, err := s.do(ctx, chatID, true, func(c *chat.Chat) ([]string, error) {
		c.AddDankTime(dt)
		return nil, nil
	})
	return err
}

// RemoveDankTime removes a dank time and reports whether it existed.
func (s *Service) RemoveDankTime(ctx context.Context, chatID int64, hour, minute int) (bool, error) {
	removed := false
	_, err := s.do(ctx, chatID, true, func(c *chat.Chat) ([]string, error) {
		removed = c.RemoveDankTime(hour, minute)
		return nil, nil
	})
	return removed, err
}

// Settings lists the settings of a chat.
func (s *Service) Settings(ctx context.Context, chatID int64) ([]chat.SettingValue, error) {
	e, err := s.entry(ctx, chatID, true)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chat.Settings(), nil
}

// SetSetting changes one setting of a chat.
func (s *Service) SetSetting(ctx context.Context, chatID int64, name, value string) error {
	_, err := s.do(ctx, chatID, true, func(c *chat.Chat) ([]string, error) {
		return nil, c.SetSetting(name, value)
	})
	return err
}

// RemoveUser drops a departed user from a chat.
func (s *Service) RemoveUser(ctx context.Context, chatID, userID int64) (bool, error) {
	removed := false
	_, err := s.do(ctx, chatID, false, func(c *chat.Chat) ([]string, error) {
		_, removed = c.RemoveUser(userID)
		return nil, nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return removed, err
}

// ForgetChat removes a chat from the registry and the store, e.g. when the
// bot was removed from the group.
func (s *Service) ForgetChat(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	delete(s.chats, chatID)
	n := len(s.chats)
	s.mu.Unlock()
	metrics.UpdateActiveChats(n)

	if err := s.store.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("forget chat %d: %w", chatID, err)
	}
	s.logger.Info(ctx, "chat forgotten", logger.Int64("chat_id", chatID))
	return nil
}

// PersistDirty saves every chat changed since its last save. Chats that
// fail to save stay dirty and are retried on the next call. Concurrent
// calls run one after another.
func (s *Service) PersistDirty(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	entries := make([]*chatEntry, 0, len(s.chats))
	for _, e := range s.chats {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		if !e.dirty {
			e.mu.Unlock()
			continue
		}
		snap := e.chat.Snapshot()
		e.dirty = false
		e.mu.Unlock()

		if err := s.store.Save(ctx, snap); err != nil {
			e.mu.Lock()
			e.dirty = true
			e.mu.Unlock()
			s.logger.Error(ctx, "saving chat failed", logger.Int64("chat_id", snap.ID), logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"chats":       len(s.chats),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"plugins":     s.plugins.Plugins(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
		stats["dedupeEntries"] = s.deduper.Size()
	}

	running := 0
	for _, e := range s.chats {
		e.mu.Lock()
		if e.chat.Running() {
			running++
		}
		e.mu.Unlock()
	}
	stats["runningChats"] = running
	return stats
}
