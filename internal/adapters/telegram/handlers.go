package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/pkg/logger"
)

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.SendMessage(ctx, chatID, text); err != nil {
		r.logger.Error(ctx, "send failed", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

// replyError turns validation errors into a user facing message and logs
// everything else.
func (r *Router) replyError(ctx context.Context, chatID int64, usage string, err error) {
	switch {
	case errors.Is(err, ErrUsage):
		r.reply(ctx, chatID, usage)
	case errors.Is(err, chat.ErrUnknownSetting):
		names := make([]string, 0, len(chat.SettingNames()))
		for _, n := range chat.SettingNames() {
			names = append(names, string(n))
		}
		r.reply(ctx, chatID, html.EscapeString(err.Error())+". Available: "+strings.Join(names, ", "))
	case errors.Is(err, ErrBadNumber),
		errors.Is(err, chat.ErrInvalidSetting),
		errors.Is(err, danktime.ErrInvalidHour),
		errors.Is(err, danktime.ErrInvalidMinute),
		errors.Is(err, danktime.ErrInvalidPoints),
		errors.Is(err, danktime.ErrNoTexts):
		r.reply(ctx, chatID, html.EscapeString(err.Error()))
	default:
		r.logger.Error(ctx, "command failed", logger.Int64("chat_id", chatID), logger.Error(err))
		r.reply(ctx, chatID, internalErrorText)
	}
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message, cmd Command) {
	chatID := msg.Chat.ID
	r.logger.Debug(ctx, "command", logger.Int64("chat_id", chatID), logger.String("command", cmd.Name))

	switch cmd.Name {
	case cmdStart:
		r.handleRunning(ctx, chatID, true)
	case cmdStop:
		r.handleRunning(ctx, chatID, false)
	case cmdLeaderboard:
		r.handleLeaderboard(ctx, chatID)
	case cmdReset:
		r.handleReset(ctx, chatID, msg.From.ID)
	case cmdDankTimes:
		r.handleDankTimes(ctx, chatID)
	case cmdAddTime:
		r.handleAddTime(ctx, chatID, cmd.Args)
	case cmdRemoveTime:
		r.handleRemoveTime(ctx, chatID, cmd.Args)
	case cmdSettings:
		r.handleSettings(ctx, chatID)
	case cmdSet:
		r.handleSet(ctx, chatID, cmd.Args)
	case cmdHelp:
		r.reply(ctx, chatID, helpText)
	default:
		// unknown commands are ignored
	}
}

func (r *Router) handleRunning(ctx context.Context, chatID int64, running bool) {
	changed, err := r.svc.SetRunning(ctx, chatID, running)
	if err != nil {
		r.replyError(ctx, chatID, "", err)
		return
	}
	switch {
	case running && changed:
		r.reply(ctx, chatID, startedText)
	case running:
		r.reply(ctx, chatID, alreadyStartedText)
	case changed:
		r.reply(ctx, chatID, stoppedText)
	default:
		r.reply(ctx, chatID, alreadyStoppedText)
	}
}

func (r *Router) handleLeaderboard(ctx context.Context, chatID int64) {
	board, err := r.svc.Leaderboard(ctx, chatID)
	if err != nil {
		r.replyError(ctx, chatID, "", err)
		return
	}
	r.reply(ctx, chatID, board)
}

func (r *Router) handleReset(ctx context.Context, chatID, userID int64) {
	if err := r.svc.RequestReset(ctx, chatID, userID); err != nil {
		r.replyError(ctx, chatID, "", err)
		return
	}
	r.reply(ctx, chatID, resetText)
}

func (r *Router) handleDankTimes(ctx context.Context, chatID int64) {
	normal, random, err := r.svc.DankTimes(ctx, chatID)
	if err != nil {
		r.replyError(ctx, chatID, "", err)
		return
	}
	r.reply(ctx, chatID, renderDankTimes(normal, random))
}

func (r *Router) handleAddTime(ctx context.Context, chatID int64, args []string) {
	dt, err := parseAddTime(args)
	if err == nil {
		err = r.svc.AddDankTime(ctx, chatID, dt)
	}
	if err != nil {
		r.replyError(ctx, chatID, addTimeUsage, err)
		return
	}
	r.reply(ctx, chatID, fmt.Sprintf(addedText, dt))
}

func (r *Router) handleRemoveTime(ctx context.Context, chatID int64, args []string) {
	hour, minute, err := parseTime(args)
	if err == nil {
		err = danktime.ValidateTime(hour, minute)
	}
	if err != nil {
		r.replyError(ctx, chatID, removeTimeUsage, err)
		return
	}

	removed, err := r.svc.RemoveDankTime(ctx, chatID, hour, minute)
	if err != nil {
		r.replyError(ctx, chatID, removeTimeUsage, err)
		return
	}
	slot := fmt.Sprintf("%02d:%02d", hour, minute)
	if !removed {
		r.reply(ctx, chatID, fmt.Sprintf(notRemovedText, slot))
		return
	}
	r.reply(ctx, chatID, fmt.Sprintf(removedText, slot))
}

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	values, err := r.svc.Settings(ctx, chatID)
	if err != nil {
		r.replyError(ctx, chatID, "", err)
		return
	}
	r.reply(ctx, chatID, renderSettings(values))
}

func (r *Router) handleSet(ctx context.Context, chatID int64, args []string) {
	name, value, err := parseSet(args)
	if err == nil {
		err = r.svc.SetSetting(ctx, chatID, name, value)
	}
	if err != nil {
		r.replyError(ctx, chatID, setUsage, err)
		return
	}
	r.reply(ctx, chatID, fmt.Sprintf(settingUpdatedText,
		html.EscapeString(strings.ToLower(name)), html.EscapeString(value)))
}

// handleLeft drops departed users. When the bot itself was removed the
// whole chat is forgotten.
func (r *Router) handleLeft(ctx context.Context, chatID int64, left *tgbotapi.User) {
	if r.selfID != 0 && left.ID == r.selfID {
		if err := r.svc.ForgetChat(ctx, chatID); err != nil {
			r.logger.Error(ctx, "forget chat failed", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return
	}
	if _, err := r.svc.RemoveUser(ctx, chatID, left.ID); err != nil {
		r.logger.Error(ctx, "remove user failed",
			logger.Int64("chat_id", chatID), logger.Int64("user_id", left.ID), logger.Error(err))
	}
}
