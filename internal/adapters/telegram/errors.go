package telegram

import "errors"

var (
	ErrUsage      = errors.New("wrong command usage")
	ErrBadNumber  = errors.New("not a whole number")
	ErrOtherBot   = errors.New("command addressed to another bot")
	ErrNotCommand = errors.New("not a command")
)
