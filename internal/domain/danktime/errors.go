package danktime

import "errors"

// Sentinel kinds for dank time validation.
var (
	ErrInvalidHour   = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute = errors.New("minute must be between 0 and 59")
	ErrNoTexts       = errors.New("a dank time needs at least one text")
	ErrInvalidPoints = errors.New("points must be at least 1")
)
