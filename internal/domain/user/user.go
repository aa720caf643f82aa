// Package user holds the per-chat participant record.
package user

import (
	"cmp"
	"slices"
)

// User is a participant of one chat.
type User struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Score              int    `json:"score"`
	LastScoreChange    int    `json:"lastScoreChange"`
	LastScoreTimestamp int64  `json:"lastScoreTimestamp"`
	// Called is set once the user scored on the currently active dank time.
	Called bool `json:"-"`
}

// New returns a zero-score user.
func New(id int64, name string) *User {
	return &User{ID: id, Name: name}
}

// AddToScore applies delta and stamps the change at timestamp.
func (u *User) AddToScore(delta int, timestamp int64) {
	u.Score += delta
	u.LastScoreChange += delta
	u.LastScoreTimestamp = timestamp
}

// ResetScore sets the score to zero.
func (u *User) ResetScore() {
	u.Score = 0
}

// ResetLastScoreChange zeroes the change counter after a leaderboard render.
func (u *User) ResetLastScoreChange() {
	u.LastScoreChange = 0
}

// Clone returns a copy of u.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Compare orders users for the leaderboard: higher score first, ties by
// ascending id.
func Compare(a, b *User) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort sorts users in leaderboard order.
func Sort(users []*User) {
	slices.SortFunc(users, Compare)
}
