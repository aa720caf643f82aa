// Package leaderboard builds immutable leaderboard snapshots and renders
// them with score and rank changes relative to an earlier snapshot.
package leaderboard

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/okian/danktime/internal/domain/user"
)

// Entry is one user as seen when the leaderboard was built.
type Entry struct {
	Position        int    `json:"position"`
	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	Score           int    `json:"score"`
	LastScoreChange int    `json:"last_score_change"`
}

// Leaderboard is a ranked, detached copy of a chat's users.
type Leaderboard struct {
	entries   []Entry
	positions map[int64]int
}

// New snapshots users in leaderboard order. The input slice is not
// modified and later changes to the users are not observed.
func New(users []*user.User) *Leaderboard {
	sorted := make([]*user.User, len(users))
	copy(sorted, users)
	user.Sort(sorted)

	lb := &Leaderboard{
		entries:   make([]Entry, len(sorted)),
		positions: make(map[int64]int, len(sorted)),
	}
	for i, u := range sorted {
		lb.entries[i] = Entry{
			Position:        i + 1,
			UserID:          u.ID,
			Name:            u.Name,
			Score:           u.Score,
			LastScoreChange: u.LastScoreChange,
		}
		lb.positions[u.ID] = i + 1
	}
	return lb
}

// Entries returns a copy of the ranked entries.
func (l *Leaderboard) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Leaderboard) Len() int { return len(l.entries) }

// Position returns the 1-based rank of a user.
func (l *Leaderboard) Position(userID int64) (int, bool) {
	p, ok := l.positions[userID]
	return p, ok
}

// Render formats the leaderboard under title. Score deltas and rank
// movement are only shown when previous is non-nil.
func (l *Leaderboard) Render(title string, previous *Leaderboard) string {
	var b strings.Builder
	b.WriteString("<b>--- " + html.EscapeString(title) + " ---</b>\n")
	if len(l.entries) == 0 {
		b.WriteString("No scores yet.")
		return b.String()
	}

	for i, e := range l.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "<b>%d.</b> %s — %d", e.Position, html.EscapeString(e.Name), e.Score)
		if previous == nil {
			continue
		}
		if e.LastScoreChange != 0 {
			b.WriteString(" (" + signed(e.LastScoreChange) + ")")
		}
		if indicator := rankIndicator(e, previous); indicator != "" {
			b.WriteString(" " + indicator)
		}
	}
	return b.String()
}

func rankIndicator(e Entry, previous *Leaderboard) string {
	before, ok := previous.Position(e.UserID)
	switch {
	case !ok:
		return "🆕"
	case before > e.Position:
		return "▲" + strconv.Itoa(before-e.Position)
	case before < e.Position:
		return "▼" + strconv.Itoa(e.Position-before)
	default:
		return ""
	}
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
