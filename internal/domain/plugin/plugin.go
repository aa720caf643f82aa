// Package plugin defines the extension points a chat fires while it works
// and a host that fans each event out to registered plugins.
package plugin

import (
	"context"
	"sync"

	"github.com/okian/danktime/internal/domain/user"
)

// EventKind names an extension point.
type EventKind string

const (
	EventInit             EventKind = "init"
	EventPreMessage       EventKind = "pre_message"
	EventPostMessage      EventKind = "post_message"
	EventUserScoreChanged EventKind = "user_score_changed"
	EventLeaderboardReset EventKind = "leaderboard_reset"
)

// Valid reports whether k is a known extension point.
func (k EventKind) Valid() bool {
	switch k {
	case EventInit, EventPreMessage, EventPostMessage, EventUserScoreChanged, EventLeaderboardReset:
		return true
	}
	return false
}

// Score change reasons carried by EventUserScoreChanged.
const (
	ReasonFirst     = "first"
	ReasonCalled    = "called"
	ReasonRepeat    = "repeat"
	ReasonWrongTime = "wrong_time"
	ReasonHardcore  = "hardcore"
)

// ChatRef is the read-only view of a chat handed to plugins.
type ChatRef interface {
	ID() int64
	Running() bool
	Users() []*user.User
}

// Event is the payload of one extension point invocation. Which fields are
// set depends on Kind: Text for messages, User/Delta/Reason for score
// changes. Chat is always set.
type Event struct {
	Kind   EventKind
	ChatID int64
	Chat   ChatRef
	Text   string
	User   *user.User
	Delta  int
	Reason string
}

// Trigger is the capability a chat invokes at its extension points. It is
// synchronous; the returned strings are appended to the chat's replies.
type Trigger interface {
	Trigger(ctx context.Context, ev Event) []string
}

// Plugin is a named Trigger that can be registered on a Host.
type Plugin interface {
	Trigger
	Name() string
}

// Func adapts a function to Trigger.
type Func func(ctx context.Context, ev Event) []string

// Trigger calls f.
func (f Func) Trigger(ctx context.Context, ev Event) []string { return f(ctx, ev) }

type nop struct{}

func (nop) Trigger(context.Context, Event) []string { return nil }

// Nop is a Trigger that never replies.
var Nop Trigger = nop{}

// Host fans events out to plugins in registration order.
type Host struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewHost returns a host with the given plugins registered.
func NewHost(plugins ...Plugin) *Host {
	h := &Host{}
	for _, p := range plugins {
		h.Register(p)
	}
	return h
}

// Register appends p. Nil plugins are ignored.
func (h *Host) Register(p Plugin) {
	if p == nil {
		return
	}
	h.mu.Lock()
	h.plugins = append(h.plugins, p)
	h.mu.Unlock()
}

// Plugins returns the registered plugin names.
func (h *Host) Plugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, len(h.plugins))
	for i, p := range h.plugins {
		names[i] = p.Name()
	}
	return names
}

// Trigger invokes every plugin and concatenates their output. Unknown
// kinds return nil. Panics from plugins are not recovered.
func (h *Host) Trigger(ctx context.Context, ev Event) []string {
	if !ev.Kind.Valid() {
		return nil
	}
	h.mu.RLock()
	plugins := make([]Plugin, len(h.plugins))
	copy(plugins, h.plugins)
	h.mu.RUnlock()

	var out []string
	for _, p := range plugins {
		out = append(out, p.Trigger(ctx, ev)...)
	}
	return out
}
