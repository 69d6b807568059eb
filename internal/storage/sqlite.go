package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "taskcast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the durable repository for chats, chat groups, tasks, task
// recipients, and responses.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &Store{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug("sqlite opened", logx.String("path", cfg.Path))
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Chats ----

// UpsertChat registers a destination chat; re-registration refreshes the
// title and group flag.
func (s *Store) UpsertChat(ctx context.Context, chatID int64, title string, isGroup bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(chat_id, title, is_group) VALUES(?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET title=excluded.title, is_group=excluded.is_group`,
		chatID, title, boolToInt(isGroup),
	)
	return err
}

func (s *Store) QueryChats(ctx context.Context, filter ChatFilter) ([]Chat, error) {
	q := `SELECT chat_id, title, is_group, added_at FROM chats`
	switch filter {
	case ChatsGroup:
		q += ` WHERE is_group = 1 ORDER BY title ASC`
	case ChatsDirect:
		q += ` WHERE is_group = 0 ORDER BY title ASC`
	default:
		q += ` ORDER BY is_group DESC, title ASC`
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var (
			c       Chat
			isGroup int
			addedAt string
		)
		if err := rows.Scan(&c.ChatID, &c.Title, &isGroup, &addedAt); err != nil {
			return nil, err
		}
		c.IsGroup = isGroup != 0
		c.AddedAt = parseSQLiteTime(addedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- Chat groups ----

func (s *Store) CreateChatGroup(ctx context.Context, name string, createdBy int64) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chat_groups WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrGroupExists
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_groups(name, created_by) VALUES(?,?)`, name, createdBy)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteChatGroup removes the group and its memberships. It is also the
// compensating action for the group wizard's eager create.
func (s *Store) DeleteChatGroup(ctx context.Context, groupID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_chats WHERE group_id = ?`, groupID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_groups WHERE id = ?`, groupID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListChatGroups(ctx context.Context, createdBy int64) ([]ChatGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(created_by, 0), created_at FROM chat_groups ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatGroup
	for rows.Next() {
		var (
			g         ChatGroup
			createdAt string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) AddChatToGroup(ctx context.Context, groupID, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_chats(group_id, chat_id) VALUES(?,?)`, groupID, chatID)
	return err
}

func (s *Store) ListGroupChats(ctx context.Context, groupID int64) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.chat_id, c.title, c.is_group, c.added_at
		 FROM chats c JOIN group_chats gc ON c.chat_id = gc.chat_id
		 WHERE gc.group_id = ? ORDER BY c.title ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var (
			c       Chat
			isGroup int
			addedAt string
		)
		if err := rows.Scan(&c.ChatID, &c.Title, &isGroup, &addedAt); err != nil {
			return nil, err
		}
		c.IsGroup = isGroup != 0
		c.AddedAt = parseSQLiteTime(addedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- Tasks ----

// CreateTaskWithRecipients persists the task and all of its recipient rows
// in one transaction, so a crash cannot leave a task with a partial
// recipient set.
func (s *Store) CreateTaskWithRecipients(ctx context.Context, text string, createdBy int64, recipients []RecipientRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks(text, created_by, status) VALUES(?,?,?)`, text, createdBy, TaskActive)
	if err != nil {
		return 0, err
	}
	taskID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, r := range recipients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_recipients(task_id, chat_id, group_id) VALUES(?,?,?)`,
			taskID, nullInt64(r.ChatID), nullInt64(r.GroupID))
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return taskID, nil
}

// PendingTasksForChat lists active tasks whose pending recipients include
// the chat, either directly or through a chat group the chat belongs to.
func (s *Store) PendingTasksForChat(ctx context.Context, chatID int64) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT t.id, t.text, t.status, COALESCE(t.created_by, 0), t.created_at
		 FROM tasks t JOIN task_recipients tr ON t.id = tr.task_id
		 WHERE t.status = ? AND tr.status != ?
		   AND (tr.chat_id = ? OR tr.group_id IN (SELECT group_id FROM group_chats WHERE chat_id = ?))
		 ORDER BY t.created_at DESC`,
		TaskActive, RecipientCompleted, chatID, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var (
			t         Task
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Text, &t.Status, &t.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteRecipient records the chat's response text, marks the matching
// recipient rows completed, and flips the task to completed when no
// pending recipients remain. Runs in one transaction. Returns whether the
// whole task is now completed.
func (s *Store) CompleteRecipient(ctx context.Context, taskID, chatID int64, responseText string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE task_recipients SET status = ?
		 WHERE task_id = ? AND status != ?
		   AND (chat_id = ? OR group_id IN (SELECT group_id FROM group_chats WHERE chat_id = ?))`,
		RecipientCompleted, taskID, RecipientCompleted, chatID, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNoPendingTask
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO responses(task_id, chat_id, text) VALUES(?,?,?)`,
		taskID, chatID, responseText); err != nil {
		return false, err
	}

	var pending int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM task_recipients WHERE task_id = ? AND status != ?`,
		taskID, RecipientCompleted).Scan(&pending); err != nil {
		return false, err
	}

	done := pending == 0
	if done {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ? WHERE id = ?`, TaskCompleted, taskID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return done, nil
}

// ListActiveTasks returns active tasks with their recipients: the recipient
// title is the chat title or the group name, whichever side of the
// selection unit is set.
func (s *Store) ListActiveTasks(ctx context.Context) ([]TaskDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.text, t.created_at,
		        COALESCE(c.title, cg.name, ''), tr.status
		 FROM tasks t
		 JOIN task_recipients tr ON t.id = tr.task_id
		 LEFT JOIN chats c ON tr.chat_id = c.chat_id
		 LEFT JOIN chat_groups cg ON tr.group_id = cg.id
		 WHERE t.status = ?
		 ORDER BY t.created_at DESC, t.id DESC`, TaskActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []TaskDetail
		index = map[int64]int{}
	)
	for rows.Next() {
		var (
			id        int64
			text      string
			createdAt string
			r         RecipientStatus
		)
		if err := rows.Scan(&id, &text, &createdAt, &r.Title, &r.Status); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			out = append(out, TaskDetail{ID: id, Text: text, CreatedAt: parseSQLiteTime(createdAt)})
			i = len(out) - 1
			index[id] = i
		}
		out[i].Recipients = append(out[i].Recipients, r)
	}
	return out, rows.Err()
}

// AggregateStats computes the totals shown in the statistics view.
func (s *Store) AggregateStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(1) FROM chats),
		   (SELECT COUNT(1) FROM tasks WHERE status = ?),
		   (SELECT COUNT(1) FROM tasks WHERE status = ?),
		   (SELECT COUNT(1) FROM responses)`,
		TaskActive, TaskCompleted,
	).Scan(&st.TotalChats, &st.ActiveTasks, &st.CompletedTasks, &st.TotalResponses)
	return st, err
}

// ---- helpers ----

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// parseSQLiteTime parses the formats sqlite emits for CURRENT_TIMESTAMP
// columns. Unparseable values yield the zero time rather than an error;
// timestamps are presentation-only here.
func parseSQLiteTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
