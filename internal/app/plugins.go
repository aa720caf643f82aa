package service

import (
	"context"

	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
)

// metricsPlugin counts score changes by reason.
type metricsPlugin struct{}

func (metricsPlugin) Name() string { return "metrics" }

func (metricsPlugin) Trigger(_ context.Context, ev plugin.Event) []string {
	if ev.Kind == plugin.EventUserScoreChanged {
		metrics.RecordScoreChange(ev.Reason, ev.Delta)
	}
	return nil
}

// auditPlugin logs score changes and resets at debug level.
type auditPlugin struct {
	logger logger.Logger
}

func (auditPlugin) Name() string { return "audit" }

func (a auditPlugin) Trigger(ctx context.Context, ev plugin.Event) []string {
	switch ev.Kind {
	case plugin.EventUserScoreChanged:
		a.logger.Debug(ctx, "score changed",
			logger.Int64("chat_id", ev.ChatID),
			logger.Int64("user_id", ev.User.ID),
			logger.Int("delta", ev.Delta),
			logger.Int("score", ev.User.Score),
			logger.String("reason", ev.Reason),
		)
	case plugin.EventLeaderboardReset:
		a.logger.Info(ctx, "leaderboard reset", logger.Int64("chat_id", ev.ChatID))
	}
	return nil
}
