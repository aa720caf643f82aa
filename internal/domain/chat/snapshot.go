package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/internal/domain/user"
)

// Snapshot is the persisted form of a chat. Random dank times and the
// leaderboard diff state are not part of it.
type Snapshot struct {
	ID         int64                `json:"id"`
	LastHour   int                  `json:"lastHour"`
	LastMinute int                  `json:"lastMinute"`
	Running    bool                 `json:"running"`
	DankTimes  []*danktime.DankTime `json:"dankTimes"`
	Users      []*user.User         `json:"users"`
	Settings   []SettingValue       `json:"settings"`
}

// Snapshot captures the chat. Users are sorted by score.
func (c *Chat) Snapshot() Snapshot {
	return Snapshot{
		ID:         c.id,
		LastHour:   c.lastHour,
		LastMinute: c.lastMinute,
		Running:    c.running,
		DankTimes:  c.DankTimes(),
		Users:      c.Users(),
		Settings:   c.settings.Values(),
	}
}

// FromSnapshot rebuilds a chat. Dank times are validated again and
// duplicate users keep their first occurrence. The init extension point
// fires once the chat is fully restored.
func FromSnapshot(s Snapshot, opts ...Option) (*Chat, error) {
	settings := DefaultSettings()
	for _, v := range s.Settings {
		if err := settings.Set(v.Name, v.Value); err != nil {
			return nil, fmt.Errorf("chat %d: setting %s: %w", s.ID, v.Name, err)
		}
	}

	c, err := build(s.ID, append([]Option{WithSettings(settings)}, opts...))
	if err != nil {
		return nil, err
	}
	if err := c.SetLastTime(s.LastHour, s.LastMinute); err != nil {
		return nil, fmt.Errorf("chat %d: %w", s.ID, err)
	}
	c.running = s.Running

	for _, d := range s.DankTimes {
		if d == nil {
			continue
		}
		dt, err := danktime.New(d.Hour, d.Minute, d.Texts, d.Points)
		if err != nil {
			return nil, fmt.Errorf("chat %d: dank time %02d:%02d: %w", s.ID, d.Hour, d.Minute, err)
		}
		c.AddDankTime(dt)
	}
	for _, u := range s.Users {
		if u == nil {
			continue
		}
		if _, dup := c.users[u.ID]; dup {
			continue
		}
		c.users[u.ID] = u.Clone()
	}
	c.fire(context.Background(), plugin.Event{Kind: plugin.EventInit})
	return c, nil
}

// Marshal encodes the snapshot as JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a JSON snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode chat snapshot: %w", err)
	}
	return s, nil
}
