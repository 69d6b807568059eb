// Package notify sends task text to destination chats, pacing outbound
// calls so a large fan-out stays under the platform's flood limits.
package notify

import (
	"context"

	"golang.org/x/time/rate"

	"taskcast/internal/transport"
	logx "taskcast/pkg/logx"
)

type Config struct {
	// RatePerSec caps outbound sends per second. 0 disables pacing.
	RatePerSec int
}

type Notifier struct {
	adapter transport.Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func New(adapter transport.Adapter, cfg Config, log logx.Logger) *Notifier {
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{adapter: adapter, limiter: lim, log: log}
}

// Send delivers one plain-text message, blocking on the rate limiter
// first. Context cancellation while waiting aborts the send.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := n.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil)
	if err != nil {
		n.log.Debug("send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
	return err
}
