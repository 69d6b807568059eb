// Package app wires configuration, logging, storage, the telegram
// adapter, and the conversation controller into one runnable unit.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"taskcast/internal/bot"
	"taskcast/internal/config"
	"taskcast/internal/notify"
	"taskcast/internal/remind"
	"taskcast/internal/storage"
	"taskcast/internal/transport"
	"taskcast/internal/transport/telegram"
	"taskcast/pkg/logx"
	"taskcast/pkg/tgui"
)

type App struct {
	cfgm    *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	store   *storage.Store
	adapter transport.Adapter
	handler bot.HandlerFunc
	remind  *remind.Reminder

	updates chan transport.Message
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	labels := bot.DefaultLabels()
	labels.Override(cfg.Labels)

	notifier := notify.New(ad, notify.Config{RatePerSec: cfg.Notifier.RatePerSec},
		log.With(logx.String("comp", "notify")))

	dispatcher := bot.NewDispatcher(store, notifier, labels,
		log.With(logx.String("comp", "dispatch")))
	controller := bot.NewController(cfg.Telegram.AdminID, labels, store, dispatcher,
		log.With(logx.String("comp", "bot")))

	handler := bot.Chain(controller.Handle,
		bot.MWPanicRecover(log.With(logx.String("comp", "bot")), labels.Get(bot.KeyMsgInternalError)),
		bot.MWRequestLog(log.With(logx.String("comp", "bot"))),
	)

	reminder := remind.New(remind.Config{
		Enabled: cfg.Reminder.Enabled,
		Spec:    cfg.Reminder.Spec,
	}, store, notifier, labels.Get(bot.KeyMsgTaskPrefix),
		log.With(logx.String("comp", "remind")))

	return &App{
		cfgm:    cfgm,
		logSvc:  logSvc,
		log:     log,
		store:   store,
		adapter: ad,
		handler: handler,
		remind:  reminder,
		updates: make(chan transport.Message, 64),
	}, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop(runCtx)
	}()

	// Config hot-reload: only logging is reapplied live; everything else
	// needs a restart.
	changes := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(changes)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-changes:
				if !ok {
					return
				}
				a.logSvc.Apply(logConfig(cfg))
				a.log.Info("config reloaded, logging reapplied")
			}
		}
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if err := a.remind.Start(runCtx); err != nil {
		a.log.Warn("reminder start failed", logx.Err(err))
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started")
	return nil
}

// loop consumes updates one at a time, so handlers never run concurrently
// and the single wizard session needs no locking beyond the table's own.
func (a *App) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.updates:
			replies, err := a.handler(ctx, msg)
			if err != nil {
				a.log.Debug("handler error", logx.Err(err))
			}
			for _, r := range replies {
				a.send(ctx, r)
			}
		}
	}
}

func (a *App) send(ctx context.Context, r bot.Reply) {
	opt := &transport.SendOptions{}
	if r.Markdown {
		opt.ParseMode = "Markdown"
	}
	switch {
	case len(r.Keyboard) > 0:
		opt.ReplyMarkupAdapter = tgui.ReplyKeyboard(r.Keyboard)
	case r.RemoveKeyboard:
		opt.ReplyMarkupAdapter = tgui.RemoveKeyboard()
	}

	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := a.adapter.SendText(sctx, transport.ChatTarget{ChatID: r.ChatID}, r.Text, opt); err != nil {
		a.log.Warn("reply send failed", logx.Int64("chat_id", r.ChatID), logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.cancel != nil {
		a.cancel()
	}
	a.remind.Stop()
	_ = a.adapter.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}

	_ = a.store.Close()
	a.log.Info("stopped")
	_ = a.logSvc.Close()
	return nil
}
