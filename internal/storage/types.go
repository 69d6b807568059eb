package storage

import (
	"errors"
	"time"
)

var (
	// ErrGroupExists is returned when a chat group with the same name
	// already exists.
	ErrGroupExists = errors.New("chat group already exists")

	// ErrNoPendingTask is returned when a response cannot be matched to an
	// active pending task for the chat.
	ErrNoPendingTask = errors.New("no pending task for chat")
)

// Config configures the sqlite repository.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// ChatFilter selects which registered chats to list.
type ChatFilter string

const (
	ChatsAll    ChatFilter = "all"
	ChatsGroup  ChatFilter = "group"
	ChatsDirect ChatFilter = "direct"
)

// TaskStatus / RecipientStatus values persisted in sqlite.
const (
	TaskActive    = "active"
	TaskCompleted = "completed"

	RecipientPending   = "pending"
	RecipientCompleted = "completed"
)

type Chat struct {
	ChatID  int64
	Title   string
	IsGroup bool
	AddedAt time.Time
}

type ChatGroup struct {
	ID        int64
	Name      string
	CreatedBy int64
	CreatedAt time.Time
}

type Task struct {
	ID        int64
	Text      string
	Status    string
	CreatedBy int64
	CreatedAt time.Time
}

// RecipientRow is one selection unit attached to a task: exactly one of
// ChatID/GroupID is non-zero.
type RecipientRow struct {
	ChatID  int64
	GroupID int64
}

// RecipientStatus is one recipient line in the active-task view.
type RecipientStatus struct {
	Title  string // chat title or group name
	Status string
}

// TaskDetail is an active task with its recipients, for review.
type TaskDetail struct {
	ID         int64
	Text       string
	CreatedAt  time.Time
	Recipients []RecipientStatus
}

type Stats struct {
	TotalChats     int
	ActiveTasks    int
	CompletedTasks int
	TotalResponses int
}
