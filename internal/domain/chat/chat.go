// Package chat implements the per-chat game state: dank time catalogue,
// users, settings and the message pipeline that awards and deducts points.
//
// A Chat is not safe for concurrent use. Callers serialize every call on
// one chat; different chats are independent.
package chat

import (
	"context"
	"fmt"
	"html"
	"math"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/okian/danktime/internal/domain/clock"
	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/internal/domain/leaderboard"
	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/internal/domain/user"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
	"github.com/okian/danktime/pkg/textutil"
)

const (
	// NoResetConfirmation means nobody is asked to confirm a reset.
	NoResetConfirmation int64 = 0

	// StaleAfter is the age in seconds from which messages are ignored.
	StaleAfter = 60

	HandicapMultiplier = 1.5
	HandicapShare      = 0.25

	HardcoreInactivity   = 24 * 60 * 60
	HardcorePenaltyRatio = 0.1
	HardcoreMinPenalty   = 10

	TitleLeaderboard      = "LEADERBOARD"
	TitleFinalLeaderboard = "FINAL LEADERBOARD"
)

// Chat is the game state of one group chat.
type Chat struct {
	id         int64
	running    bool
	lastHour   int
	lastMinute int

	dankTimes       []*danktime.DankTime
	randomDankTimes []*danktime.DankTime
	users           map[int64]*user.User
	settings        Settings

	awaitingResetConfirmation int64
	lastLeaderboard           *leaderboard.Leaderboard

	trigger plugin.Trigger
	clock   clock.Clock
	rnd     *rand.Rand
	log     logger.Logger
}

// New creates a chat with default settings and fires the init extension
// point.
func New(id int64, opts ...Option) (*Chat, error) {
	c, err := build(id, opts)
	if err != nil {
		return nil, err
	}
	c.fire(context.Background(), plugin.Event{Kind: plugin.EventInit})
	return c, nil
}

// build constructs a chat without firing init.
func build(id int64, opts []Option) (*Chat, error) {
	if id == 0 {
		return nil, ErrInvalidChatID
	}
	c := &Chat{
		id:       id,
		users:    make(map[int64]*user.User),
		settings: DefaultSettings(),
		trigger:  plugin.Nop,
		clock:    clock.System{},
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // game randomness
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ID returns the chat id.
func (c *Chat) ID() int64 { return c.id }

// Running reports whether scoring is enabled.
func (c *Chat) Running() bool { return c.running }

// SetRunning starts or stops scoring.
func (c *Chat) SetRunning(running bool) { c.running = running }

// LastTime returns the dank time whose first-scorer window was last opened.
func (c *Chat) LastTime() (hour, minute int) { return c.lastHour, c.lastMinute }

// SetLastTime validates and stores the last opened dank time.
func (c *Chat) SetLastTime(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: got %d", ErrInvalidHour, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinute, minute)
	}
	c.lastHour, c.lastMinute = hour, minute
	return nil
}

// Now reads the clock in the chat's timezone.
func (c *Chat) Now() clock.LocalTime {
	return clock.Local(c.clock, c.settings.location)
}

// Settings access.

func (c *Chat) Settings() []SettingValue             { return c.settings.Values() }
func (c *Chat) Timezone() string                     { return c.settings.Timezone }
func (c *Chat) Location() *time.Location             { return c.settings.location }
func (c *Chat) Multiplier() float64                  { return c.settings.Multiplier }
func (c *Chat) NumberOfRandomTimes() int             { return c.settings.NumberOfRandomTimes }
func (c *Chat) PointsPerRandomTime() int             { return c.settings.PointsPerRandomTime }
func (c *Chat) HardcoreMode() bool                   { return c.settings.HardcoreMode }
func (c *Chat) Handicaps() bool                      { return c.settings.Handicaps }
func (c *Chat) FirstNotifications() bool             { return c.settings.FirstNotifications }
func (c *Chat) AutoLeaderboards() bool               { return c.settings.AutoLeaderboards }
func (c *Chat) Notifications() bool                  { return c.settings.Notifications }
func (c *Chat) Setting(n SettingName) (string, bool) { return c.settings.Get(n) }

// SetSetting parses name and coerces raw through the setting's validator.
// The chat is unchanged on error.
func (c *Chat) SetSetting(name, raw string) error {
	n, err := ParseSettingName(name)
	if err != nil {
		return err
	}
	return c.settings.Set(n, raw)
}

// AwaitResetConfirmation asks userID to confirm a leaderboard reset with
// their next message.
func (c *Chat) AwaitResetConfirmation(userID int64) { c.awaitingResetConfirmation = userID }

// AwaitingResetConfirmation returns the user asked to confirm a reset, or
// NoResetConfirmation.
func (c *Chat) AwaitingResetConfirmation() int64 { return c.awaitingResetConfirmation }

// Dank times.

// AddDankTime stores a copy of dt, replacing any dank time at the same
// hour and minute.
func (c *Chat) AddDankTime(dt *danktime.DankTime) {
	c.dankTimes = slices.DeleteFunc(c.dankTimes, func(d *danktime.DankTime) bool {
		return d.Same(dt.Hour, dt.Minute)
	})
	c.dankTimes = append(c.dankTimes, dt.Clone())
	slices.SortFunc(c.dankTimes, danktime.Compare)
}

// RemoveDankTime removes the dank time at hour:minute and reports whether
// one existed.
func (c *Chat) RemoveDankTime(hour, minute int) bool {
	before := len(c.dankTimes)
	c.dankTimes = slices.DeleteFunc(c.dankTimes, func(d *danktime.DankTime) bool {
		return d.Same(hour, minute)
	})
	return len(c.dankTimes) != before
}

// DankTime returns a copy of the normal dank time at hour:minute.
func (c *Chat) DankTime(hour, minute int) (*danktime.DankTime, bool) {
	for _, d := range c.dankTimes {
		if d.Same(hour, minute) {
			return d.Clone(), true
		}
	}
	return nil, false
}

// DankTimes returns copies of the normal dank times in order.
func (c *Chat) DankTimes() []*danktime.DankTime { return cloneDankTimes(c.dankTimes) }

// RandomDankTimes returns copies of today's random dank times.
func (c *Chat) RandomDankTimes() []*danktime.DankTime { return cloneDankTimes(c.randomDankTimes) }

// HasDankTime reports whether a normal or random dank time is at
// hour:minute.
func (c *Chat) HasDankTime(hour, minute int) bool {
	same := func(d *danktime.DankTime) bool { return d.Same(hour, minute) }
	return slices.ContainsFunc(c.dankTimes, same) || slices.ContainsFunc(c.randomDankTimes, same)
}

// GenerateRandomDankTimes replaces the random dank times. Hours are drawn
// from [0,22] and minutes from [0,58]. Draws that collide with an existing
// dank time are dropped, so fewer than NumberOfRandomTimes may result.
func (c *Chat) GenerateRandomDankTimes() []*danktime.DankTime {
	c.randomDankTimes = nil
	for range c.settings.NumberOfRandomTimes {
		hour := c.rnd.Intn(23)
		minute := c.rnd.Intn(59)
		if c.HasDankTime(hour, minute) {
			continue
		}
		text := textutil.PadNumber(hour) + textutil.PadNumber(minute)
		dt, err := danktime.New(hour, minute, []string{text}, c.settings.PointsPerRandomTime)
		if err != nil {
			c.log.Warn(context.Background(), "skipping random dank time", logger.Int64("chat_id", c.id), logger.Error(err))
			continue
		}
		c.randomDankTimes = append(c.randomDankTimes, dt)
	}
	slices.SortFunc(c.randomDankTimes, danktime.Compare)
	metrics.RecordRandomDankTimes(len(c.randomDankTimes))
	return c.RandomDankTimes()
}

func cloneDankTimes(in []*danktime.DankTime) []*danktime.DankTime {
	out := make([]*danktime.DankTime, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

// Users.

// Users returns copies of all users in leaderboard order.
func (c *Chat) Users() []*user.User {
	out := make([]*user.User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u.Clone())
	}
	user.Sort(out)
	return out
}

// User returns a copy of one user.
func (c *Chat) User(id int64) (*user.User, bool) {
	u, ok := c.users[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// RemoveUser deletes a user and returns it.
func (c *Chat) RemoveUser(id int64) (*user.User, bool) {
	u, ok := c.users[id]
	if !ok {
		return nil, false
	}
	delete(c.users, id)
	return u, true
}

// RemoveUsersWithZeroScore deletes every user at exactly zero points and
// returns how many were removed.
func (c *Chat) RemoveUsersWithZeroScore() int {
	var ids []int64
	for id, u := range c.users {
		if u.Score == 0 {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(c.users, id)
	}
	return len(ids)
}

func (c *Chat) sortedUsers() []*user.User {
	out := make([]*user.User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	user.Sort(out)
	return out
}

// Leaderboards.

// LeaderboardChanged reports whether any score changed since the last
// generated leaderboard.
func (c *Chat) LeaderboardChanged() bool {
	for _, u := range c.users {
		if u.LastScoreChange != 0 {
			return true
		}
	}
	return false
}

// GenerateLeaderboard renders the leaderboard against the previous one,
// keeps it for the next diff and clears every user's score change.
func (c *Chat) GenerateLeaderboard(final bool) string {
	lb := leaderboard.New(c.sortedUsers())
	title := TitleLeaderboard
	if final {
		title = TitleFinalLeaderboard
	}
	out := lb.Render(title, c.lastLeaderboard)
	c.lastLeaderboard = lb
	for _, u := range c.users {
		u.ResetLastScoreChange()
	}
	metrics.RecordLeaderboardRendered(final)
	return out
}

// Leaderboard returns the current standings without touching diff state.
func (c *Chat) Leaderboard() *leaderboard.Leaderboard {
	return leaderboard.New(c.sortedUsers())
}

// ProcessMessage runs one chat message through the game and returns the
// replies: pre-message plugin output, scoring output, then post-message
// plugin output. Messages StaleAfter seconds or older return nothing.
func (c *Chat) ProcessMessage(ctx context.Context, userID int64, userName, text string, timestamp int64) []string {
	now := c.Now()
	if now.Unix-timestamp >= StaleAfter {
		metrics.RecordMessageStale()
		return nil
	}

	out := c.fire(ctx, plugin.Event{Kind: plugin.EventPreMessage, Text: text})

	switch {
	case c.awaitingResetConfirmation != NoResetConfirmation && c.awaitingResetConfirmation == userID:
		out = append(out, c.handleResetConfirmation(ctx, text)...)
	case c.running:
		out = append(out, c.handleDankTimeInput(ctx, userID, userName, textutil.Normalize(text), now)...)
	}

	out = append(out, c.fire(ctx, plugin.Event{Kind: plugin.EventPostMessage, Text: textutil.CleanText(text)})...)
	return out
}

func (c *Chat) handleResetConfirmation(ctx context.Context, text string) []string {
	c.awaitingResetConfirmation = NoResetConfirmation
	if !strings.EqualFold(strings.TrimSpace(text), "yes") {
		return nil
	}

	out := []string{c.GenerateLeaderboard(true)}
	for _, u := range c.users {
		u.ResetScore()
	}
	c.lastLeaderboard = nil
	metrics.RecordLeaderboardReset()
	c.log.Info(ctx, "leaderboard reset", logger.Int64("chat_id", c.id))
	return append(out, c.fire(ctx, plugin.Event{Kind: plugin.EventLeaderboardReset})...)
}

func (c *Chat) handleDankTimeInput(ctx context.Context, userID int64, userName, text string, now clock.LocalTime) []string {
	var matched []*danktime.DankTime
	for _, list := range [][]*danktime.DankTime{c.dankTimes, c.randomDankTimes} {
		for _, d := range list {
			if d.HasText(text) {
				matched = append(matched, d)
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	u, ok := c.users[userID]
	if !ok {
		u = user.New(userID, userName)
		c.users[userID] = u
	} else if userName != "" && u.Name != userName {
		u.Name = userName
	}

	for _, d := range matched {
		if d.Same(now.Hour, now.Minute) {
			return c.score(ctx, u, d, now.Unix)
		}
	}

	worst := matched[0].Points
	for _, d := range matched[1:] {
		worst = max(worst, d.Points)
	}
	u.AddToScore(-worst, now.Unix)
	return c.scoreChanged(ctx, u, -worst, plugin.ReasonWrongTime)
}

func (c *Chat) score(ctx context.Context, u *user.User, d *danktime.DankTime, now int64) []string {
	if !d.Same(c.lastHour, c.lastMinute) {
		for _, other := range c.users {
			other.Called = false
		}
		c.lastHour, c.lastMinute = d.Hour, d.Minute

		delta := roundHalfUp(float64(d.Points) * c.settings.Multiplier * c.handicapMultiplier(u))
		u.AddToScore(delta, now)
		u.Called = true
		out := c.scoreChanged(ctx, u, delta, plugin.ReasonFirst)
		if c.settings.FirstNotifications {
			out = append(out, fmt.Sprintf("👏 %s was the first to score!", html.EscapeString(u.Name)))
		}
		return out
	}

	if u.Called {
		u.AddToScore(-d.Points, now)
		return c.scoreChanged(ctx, u, -d.Points, plugin.ReasonRepeat)
	}

	delta := roundHalfUp(float64(d.Points) * c.handicapMultiplier(u))
	u.AddToScore(delta, now)
	u.Called = true
	return c.scoreChanged(ctx, u, delta, plugin.ReasonCalled)
}

// handicapMultiplier returns HandicapMultiplier for users in the bottom
// HandicapShare of the leaderboard, 1 otherwise.
func (c *Chat) handicapMultiplier(u *user.User) float64 {
	if !c.settings.Handicaps || len(c.users) < 2 {
		return 1
	}
	ranked := c.sortedUsers()
	n := min(roundHalfUp(float64(len(ranked))*HandicapShare), len(ranked))
	for _, r := range ranked[len(ranked)-n:] {
		if r.ID == u.ID {
			return HandicapMultiplier
		}
	}
	return 1
}

// HardcoreModeCheck deducts max(10% of score, 10) from every user that has
// not scored for a day. It does nothing unless hardcore mode is on.
func (c *Chat) HardcoreModeCheck(ctx context.Context, now int64) []string {
	if !c.settings.HardcoreMode {
		return nil
	}
	var out []string
	for _, u := range c.sortedUsers() {
		if now-u.LastScoreTimestamp < HardcoreInactivity {
			continue
		}
		penalty := max(roundHalfUp(float64(u.Score)*HardcorePenaltyRatio), HardcoreMinPenalty)
		u.AddToScore(-penalty, now)
		out = append(out, c.scoreChanged(ctx, u, -penalty, plugin.ReasonHardcore)...)
	}
	return out
}

func (c *Chat) scoreChanged(ctx context.Context, u *user.User, delta int, reason string) []string {
	return c.fire(ctx, plugin.Event{
		Kind:   plugin.EventUserScoreChanged,
		User:   u.Clone(),
		Delta:  delta,
		Reason: reason,
	})
}

func (c *Chat) fire(ctx context.Context, ev plugin.Event) []string {
	ev.ChatID = c.id
	ev.Chat = c
	return c.trigger.Trigger(ctx, ev)
}

// roundHalfUp rounds halves towards positive infinity.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
