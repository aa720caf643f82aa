// Package telegram connects the game to Telegram through long polling.
package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okian/danktime/internal/adapters/mq/queue"
	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/internal/domain/danktime"
	"github.com/okian/danktime/internal/domain/dedupe"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
)

const defaultPollTimeout = 30

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Service is the game API the router drives.
type Service interface {
	Submit(ctx context.Context, transportID string, m queue.Message) error
	SetRunning(ctx context.Context, chatID int64, running bool) (bool, error)
	Leaderboard(ctx context.Context, chatID int64) (string, error)
	RequestReset(ctx context.Context, chatID, userID int64) error
	DankTimes(ctx context.Context, chatID int64) (normal, random []*danktime.DankTime, err error)
	AddDankTime(ctx context.Context, chatID int64, dt *danktime.DankTime) error
	RemoveDankTime(ctx context.Context, chatID int64, hour, minute int) (bool, error)
	Settings(ctx context.Context, chatID int64) ([]chat.SettingValue, error)
	SetSetting(ctx context.Context, chatID int64, name, value string) error
	RemoveUser(ctx context.Context, chatID, userID int64) (bool, error)
	ForgetChat(ctx context.Context, chatID int64) error
}

// Router wires Telegram updates to the game service.
type Router struct {
	bot         Bot
	svc         Service
	selfID      int64
	username    string
	pollTimeout int
	logger      logger.Logger
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Bot, svc Service, opts ...Option) *Router {
	r := &Router{
		bot:         bot,
		svc:         svc,
		pollTimeout: defaultPollTimeout,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run long-polls for updates until ctx is cancelled or the update channel
// closes.
func (r *Router) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.pollTimeout
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	r.logger.Info(ctx, "telegram polling started", logger.String("bot", r.username))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "telegram polling stopping")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			r.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate routes a single update.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if left := msg.LeftChatMember; left != nil {
		r.handleLeft(ctx, chatID, left)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.From == nil || msg.From.IsBot {
		return
	}

	cmd, err := ParseCommand(text, r.username)
	switch {
	case errors.Is(err, ErrOtherBot):
		return
	case err == nil:
		r.handleCommand(ctx, msg, cmd)
		return
	}

	m := queue.NewMessage(chatID, msg.From.ID, displayName(msg.From), msg.Text, int64(msg.Date))
	err = r.svc.Submit(ctx, dedupe.MessageKey(chatID, msg.MessageID), m)
	if err != nil {
		r.logger.Warn(ctx, "message not accepted",
			logger.Int64("chat_id", chatID),
			logger.Int("message_id", msg.MessageID),
			logger.Error(err))
	}
}

// SendMessage sends an HTML message to the given chat. This makes Router
// satisfy the worker and scheduler Sender.
func (r *Router) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.bot.Send(msg); err != nil {
		metrics.RecordErrorByComponent("telegram", "send_failed")
		return err
	}
	return nil
}

// displayName prefers the full name, then the username.
func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}
