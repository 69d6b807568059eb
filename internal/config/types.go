package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Notifier NotifierConfig `json:"notifier,omitempty"`
	Reminder ReminderConfig `json:"reminder,omitempty"`

	// Labels overrides individual UI labels by key (see bot.DefaultLabels).
	// Unknown keys are ignored; empty values keep the default.
	Labels map[string]string `json:"labels,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via the BOT_TOKEN
	// environment variable instead.
	Token string `json:"token"`

	// AdminID is the single authorized operator. May be supplied via the
	// ADMIN_ID environment variable instead.
	AdminID int64 `json:"admin_id"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the sqlite repository.
type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// NotifierConfig controls the outbound send rate during task fan-out.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// ReminderConfig controls the optional pending-task reminder job.
type ReminderConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression (e.g. "0 9 * * *" for 09:00 daily).
	Spec string `json:"spec,omitempty"`
}
