package chat

import "errors"

var (
	ErrInvalidChatID  = errors.New("chat id must be a non-zero whole number")
	ErrInvalidHour    = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute  = errors.New("minute must be between 0 and 59")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)
