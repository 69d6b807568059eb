package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"taskcast/internal/transport"
	logx "taskcast/pkg/logx"
)

type HandlerFunc func(ctx context.Context, msg transport.Message) ([]Reply, error)

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// MWPanicRecover converts a handler panic into one generic reply. Session
// state is left as-is so the administrator can retry or cancel.
func MWPanicRecover(log logx.Logger, fallbackText string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg transport.Message) (replies []Reply, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered",
						logx.Any("panic", r),
						logx.Int64("chat_id", msg.ChatID),
						logx.String("stack", string(debug.Stack())),
					)
					replies = []Reply{{ChatID: msg.ChatID, Text: fallbackText}}
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg transport.Message) ([]Reply, error) {
			start := time.Now()
			reqID := uuid.NewString()
			replies, err := next(ctx, msg)
			d := time.Since(start)

			fields := []logx.Field{
				logx.String("req_id", reqID),
				logx.Int64("chat_id", msg.ChatID),
				logx.Int64("from_id", msg.FromID),
				logx.Int("text_len", len(msg.Text)),
				logx.Int("replies", len(replies)),
				logx.Duration("dur", d),
			}
			if err != nil {
				log.Warn("update failed", append(fields, logx.Err(err))...)
			} else {
				// Keep INFO useful: fast successful updates go to DEBUG.
				if d >= 750*time.Millisecond {
					log.Info("update ok", fields...)
				} else {
					log.Debug("update ok", fields...)
				}
			}
			return replies, err
		}
	}
}
