// Package remind runs an optional scheduled job that nudges pending
// recipients of active tasks.
package remind

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"taskcast/internal/storage"
	logx "taskcast/pkg/logx"
)

type Config struct {
	Enabled bool
	// Spec is a standard 5-field cron expression.
	Spec string
}

// Sender delivers one reminder message. The notifier satisfies it.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Repo is the slice of storage the reminder needs.
type Repo interface {
	QueryChats(ctx context.Context, filter storage.ChatFilter) ([]storage.Chat, error)
	PendingTasksForChat(ctx context.Context, chatID int64) ([]storage.Task, error)
}

// Reminder periodically re-sends the text of still-pending tasks to the
// chats that have not responded yet.
type Reminder struct {
	cfg    Config
	repo   Repo
	sender Sender
	prefix string
	log    logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, repo Repo, sender Sender, taskPrefix string, log logx.Logger) *Reminder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reminder{cfg: cfg, repo: repo, sender: sender, prefix: taskPrefix, log: log}
}

func (r *Reminder) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(r.cfg.Spec, func() { r.run(ctx) }); err != nil {
		return err
	}

	r.mu.Lock()
	r.c = c
	r.mu.Unlock()

	c.Start()
	r.log.Info("reminder scheduled", logx.String("spec", r.cfg.Spec))
	return nil
}

func (r *Reminder) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// run re-sends each chat its oldest pending task. Failures are logged and
// the sweep continues; the next tick retries.
func (r *Reminder) run(ctx context.Context) {
	chats, err := r.repo.QueryChats(ctx, storage.ChatsAll)
	if err != nil {
		r.log.Warn("reminder sweep failed", logx.Err(err))
		return
	}

	var sent int
	for _, ch := range chats {
		pending, err := r.repo.PendingTasksForChat(ctx, ch.ChatID)
		if err != nil {
			r.log.Warn("pending lookup failed",
				logx.Int64("chat_id", ch.ChatID), logx.Err(err))
			continue
		}
		if len(pending) == 0 {
			continue
		}
		// Oldest first keeps the nudge on the longest-outstanding task.
		t := pending[len(pending)-1]
		text := "⏰ Напоминание\n" + r.prefix + " " + t.Text
		if err := r.sender.Send(ctx, ch.ChatID, text); err != nil {
			r.log.Warn("reminder send failed",
				logx.Int64("chat_id", ch.ChatID),
				logx.Int64("task_id", t.ID),
				logx.Err(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		r.log.Info("reminders sent", logx.Int("count", sent))
	}
}
