// Package danktime defines the time slot value: a time of day, the texts
// that score at that time and how many points they are worth.
package danktime

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/okian/danktime/pkg/textutil"
)

// DankTime is one scoring slot of a chat.
type DankTime struct {
	Hour   int      `json:"hour"`
	Minute int      `json:"minute"`
	Texts  []string `json:"texts"`
	Points int      `json:"points"`
}

// New validates and builds a DankTime. Texts are normalized and
// de-duplicated; empty texts are dropped.
func New(hour, minute int, texts []string, points int) (*DankTime, error) {
	if err := ValidateTime(hour, minute); err != nil {
		return nil, err
	}
	if points < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoints, points)
	}

	normalized := make([]string, 0, len(texts))
	for _, t := range texts {
		t = textutil.Normalize(t)
		if t == "" || slices.Contains(normalized, t) {
			continue
		}
		normalized = append(normalized, t)
	}
	if len(normalized) == 0 {
		return nil, ErrNoTexts
	}

	return &DankTime{Hour: hour, Minute: minute, Texts: normalized, Points: points}, nil
}

// ValidateTime checks an hour/minute pair.
func ValidateTime(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: got %d", ErrInvalidHour, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinute, minute)
	}
	return nil
}

// HasText reports whether candidate equals one of the texts exactly.
func (d *DankTime) HasText(candidate string) bool {
	return slices.Contains(d.Texts, candidate)
}

// Same reports whether d is scheduled at hour:minute.
func (d *DankTime) Same(hour, minute int) bool {
	return d.Hour == hour && d.Minute == minute
}

// Clone returns a deep copy.
func (d *DankTime) Clone() *DankTime {
	c := *d
	c.Texts = slices.Clone(d.Texts)
	return &c
}

// String renders the slot as "HH:MM".
func (d *DankTime) String() string {
	return textutil.PadNumber(d.Hour) + ":" + textutil.PadNumber(d.Minute)
}

// Compare orders dank times by hour, then minute.
func Compare(a, b *DankTime) int {
	if c := cmp.Compare(a.Hour, b.Hour); c != 0 {
		return c
	}
	return cmp.Compare(a.Minute, b.Minute)
}
