// Package scheduler runs the time driven jobs of every chat: daily random
// dank times and hardcore punishments, random dank time announcements and
// automatic leaderboards.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/okian/danktime/internal/adapters/repository"
	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
)

const (
	defaultInterval = time.Minute
	// maxCatchUp bounds how many missed minutes are scanned for dank times
	// that ended between two ticks.
	maxCatchUp = 60
)

// Service is the part of the chat registry the scheduler needs.
type Service interface {
	ChatIDs() []int64
	Update(ctx context.Context, chatID int64, fn func(c *chat.Chat) []string) ([]string, error)
	PersistDirty(ctx context.Context) error
}

// Sender delivers scheduler output to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Scheduler periodically runs the jobs of every chat.
type Scheduler struct {
	svc      Service
	sender   Sender
	interval time.Duration
	logger   logger.Logger

	mu    sync.Mutex
	marks map[int64]mark
}

// mark is the last minute handled for a chat and its local date.
type mark struct {
	minute int64
	day    string
}

// New creates a Scheduler. Poll interval defaults to one minute.
func New(svc Service, sender Sender, opts ...Option) *Scheduler {
	s := &Scheduler{
		svc:      svc,
		sender:   sender,
		interval: defaultInterval,
		logger:   logger.Nop(),
		marks:    make(map[int64]mark),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "scheduler started", logger.String("interval", s.interval.String()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one scheduling cycle over every chat, then persists the
// chats that changed.
func (s *Scheduler) tick(ctx context.Context) {
	ids := s.svc.ChatIDs()
	s.prune(ids)
	for _, id := range ids {
		out, err := s.svc.Update(ctx, id, func(c *chat.Chat) []string {
			return s.runChat(ctx, c)
		})
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error(ctx, "chat jobs failed", logger.Int64("chat_id", id), logger.Error(err))
			metrics.RecordErrorByComponent("scheduler", "update_failed")
			continue
		}
		s.send(ctx, id, out)
	}

	if err := s.svc.PersistDirty(ctx); err != nil {
		s.logger.Error(ctx, "persisting chats failed", logger.Error(err))
		metrics.RecordErrorByComponent("scheduler", "persist_failed")
	}
}

func (s *Scheduler) send(ctx context.Context, chatID int64, out []string) {
	if s.sender == nil {
		return
	}
	for _, text := range out {
		if text == "" {
			continue
		}
		if err := s.sender.SendMessage(ctx, chatID, text); err != nil {
			s.logger.Error(ctx, "send failed", logger.Int64("chat_id", chatID), logger.Error(err))
			metrics.RecordErrorByComponent("scheduler", "send_failed")
		}
	}
}

// claim marks minute as handled for chatID. It returns the previous mark,
// whether the chat was seen before and false when minute was already
// handled.
func (s *Scheduler) claim(chatID, minute int64, day string) (prev mark, seen, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen = s.marks[chatID]
	if seen && minute <= prev.minute {
		return prev, seen, false
	}
	s.marks[chatID] = mark{minute: minute, day: day}
	return prev, seen, true
}

// prune forgets chats that are no longer registered.
func (s *Scheduler) prune(ids []int64) {
	keep := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.marks {
		if _, ok := keep[id]; !ok {
			delete(s.marks, id)
		}
	}
}

// runChat runs the jobs due since the chat was last handled. Daily jobs run
// once the local date changes, even when no tick landed on midnight. It is
// called with the chat locked.
func (s *Scheduler) runChat(ctx context.Context, c *chat.Chat) []string {
	now := c.Now()
	loc := c.Location()
	minute := now.Unix / 60
	day := time.Unix(now.Unix, 0).In(loc).Format(time.DateOnly)

	prev, seen, ok := s.claim(c.ID(), minute, day)
	if !ok {
		return nil
	}

	var out []string
	newDay := prev.day != day
	if !seen {
		newDay = now.Hour == 0 && now.Minute == 0
	}
	if newDay {
		c.GenerateRandomDankTimes()
		if c.Running() {
			out = append(out, c.HardcoreModeCheck(ctx, now.Unix)...)
		}
	}
	if !c.Running() {
		return out
	}

	if c.Notifications() {
		for _, d := range c.RandomDankTimes() {
			if d.Same(now.Hour, now.Minute) {
				out = append(out, fmt.Sprintf("⏰ Surprise dank time! Type <b>%s</b> for %d points!",
					html.EscapeString(d.Texts[0]), d.Points))
			}
		}
	}

	if c.AutoLeaderboards() {
		from := minute - 1
		if seen {
			from = max(prev.minute, minute-maxCatchUp)
		}
		if endedBetween(c, loc, from, minute) && c.LeaderboardChanged() {
			out = append(out, c.GenerateLeaderboard(false))
		}
	}
	return out
}

// endedBetween reports whether a dank time fell in a minute of [from, to).
func endedBetween(c *chat.Chat, loc *time.Location, from, to int64) bool {
	for m := from; m < to; m++ {
		t := time.Unix(m*60, 0).In(loc)
		if c.HasDankTime(t.Hour(), t.Minute()) {
			return true
		}
	}
	return false
}
