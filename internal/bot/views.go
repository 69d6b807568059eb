package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskcast/internal/storage"
	"taskcast/pkg/tgui"
)

func (c *Controller) text(chatID int64, key string) Reply {
	return Reply{ChatID: chatID, Text: c.labels.Get(key)}
}

func (c *Controller) menuReply(chatID int64) Reply {
	return Reply{
		ChatID: chatID,
		Text:   c.labels.Get(KeyMsgMenu),
		Keyboard: [][]string{
			{c.labels.Get(KeyBtnCreateTask)},
			{c.labels.Get(KeyBtnViewTasks)},
			{c.labels.Get(KeyBtnViewChats)},
			{c.labels.Get(KeyBtnCreateGroup)},
			{c.labels.Get(KeyBtnStatistics)},
			{c.labels.Get(KeyBtnSettings), c.labels.Get(KeyBtnHelp)},
		},
	}
}

func (c *Controller) settingsReply(chatID int64) Reply {
	return Reply{
		ChatID: chatID,
		Text:   c.labels.Get(KeyMsgSettings),
		Keyboard: [][]string{
			{c.labels.Get(KeyBtnManageChats), c.labels.Get(KeyBtnNotifications)},
			{c.labels.Get(KeyBtnAccessRights), c.labels.Get(KeyBtnConfiguration)},
			{c.labels.Get(KeyBtnBack), c.labels.Get(KeyBtnMainMenu)},
		},
	}
}

func (c *Controller) manageChatsReply(chatID int64) Reply {
	return Reply{
		ChatID: chatID,
		Text:   c.labels.Get(KeyBtnManageChats),
		Keyboard: [][]string{
			{c.labels.Get(KeyBtnRemoveChat)},
			{c.labels.Get(KeyBtnBack)},
		},
	}
}

func (c *Controller) typeKeyboard() [][]string {
	return [][]string{
		{c.labels.Get(KeyBtnTypeGroupChats)},
		{c.labels.Get(KeyBtnTypeDirectChats)},
		{c.labels.Get(KeyBtnTypeChatGroups)},
		{c.labels.Get(KeyBtnCancel)},
	}
}

func (c *Controller) cancelKeyboard() [][]string {
	return [][]string{{c.labels.Get(KeyBtnCancel)}}
}

func (c *Controller) backKeyboard() [][]string {
	return [][]string{{c.labels.Get(KeyBtnBack)}}
}

// chatListReply renders registered chats grouped by kind with per-kind
// counts, the way the administrator reviews what /addchat collected.
func (c *Controller) chatListReply(ctx context.Context, chatID int64) ([]Reply, error) {
	chats, err := c.store.QueryChats(ctx, storage.ChatsAll)
	if err != nil {
		return []Reply{c.text(chatID, KeyMsgInternalError)}, err
	}
	if len(chats) == 0 {
		return []Reply{{
			ChatID:   chatID,
			Text:     c.labels.Get(KeyMsgNoChats),
			Keyboard: c.backKeyboard(),
		}}, nil
	}

	var groups, direct []storage.Chat
	for _, ch := range chats {
		if ch.IsGroup {
			groups = append(groups, ch)
		} else {
			direct = append(direct, ch)
		}
	}

	var b strings.Builder
	b.WriteString("📋 Список подключенных чатов:\n")
	writeChatSection(&b, "\n👥 Групповые чаты:", groups)
	writeChatSection(&b, "\n👤 Личные чаты:", direct)
	fmt.Fprintf(&b, "\nВсего чатов: %d\n", len(chats))
	fmt.Fprintf(&b, "• Групповых: %d\n", len(groups))
	fmt.Fprintf(&b, "• Личных: %d", len(direct))

	return []Reply{{
		ChatID:   chatID,
		Text:     b.String(),
		Keyboard: c.backKeyboard(),
	}}, nil
}

func writeChatSection(b *strings.Builder, header string, chats []storage.Chat) {
	if len(chats) == 0 {
		return
	}
	b.WriteString(header + "\n")
	for _, ch := range chats {
		fmt.Fprintf(b, "• %s\n  ID: %d\n", ch.Title, ch.ChatID)
		if !ch.AddedAt.IsZero() {
			fmt.Fprintf(b, "  Добавлен: %s\n", ch.AddedAt.Format("2006-01-02 15:04"))
		}
	}
}

// activeTasksReplies renders one message per active task with a glyph per
// recipient, then a trailing end marker carrying the back keyboard.
func (c *Controller) activeTasksReplies(ctx context.Context, chatID int64) ([]Reply, error) {
	tasks, err := c.store.ListActiveTasks(ctx)
	if err != nil {
		return []Reply{c.text(chatID, KeyMsgInternalError)}, err
	}
	if len(tasks) == 0 {
		return []Reply{{
			ChatID:   chatID,
			Text:     c.labels.Get(KeyMsgNoActiveTasks),
			Keyboard: c.backKeyboard(),
		}}, nil
	}

	out := make([]Reply, 0, len(tasks)+1)
	for _, t := range tasks {
		var b strings.Builder
		fmt.Fprintf(&b, "📝 Задание №%d:\n%s\n", t.ID, t.Text)
		if !t.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "Создано: %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\nПолучатели:\n")
		for _, r := range t.Recipients {
			glyph := c.labels.Get(KeyGlyphPending)
			if r.Status == storage.RecipientCompleted {
				glyph = c.labels.Get(KeyGlyphDone)
			}
			fmt.Fprintf(&b, "%s %s\n", glyph, r.Title)
		}
		out = append(out, Reply{ChatID: chatID, Text: strings.TrimRight(b.String(), "\n")})
	}
	out = append(out, Reply{
		ChatID:   chatID,
		Text:     c.labels.Get(KeyMsgTasksListEnd),
		Keyboard: c.backKeyboard(),
	})
	return out, nil
}

func (c *Controller) statsReply(ctx context.Context, chatID int64) ([]Reply, error) {
	st, err := c.store.AggregateStats(ctx)
	if err != nil {
		return []Reply{c.text(chatID, KeyMsgInternalError)}, err
	}

	var b strings.Builder
	b.WriteString("*📈 Общая статистика*\n\n")
	fmt.Fprintf(&b, "Всего чатов: %d\n", st.TotalChats)
	fmt.Fprintf(&b, "Активных заданий: %d\n", st.ActiveTasks)
	fmt.Fprintf(&b, "Выполненных заданий: %d\n", st.CompletedTasks)
	fmt.Fprintf(&b, "Всего ответов: %d\n", st.TotalResponses)
	fmt.Fprintf(&b, "\n_%s_", tgui.EscapeMarkdown(time.Now().Format("2006-01-02 15:04:05")))

	return []Reply{{
		ChatID:   chatID,
		Text:     b.String(),
		Keyboard: c.backKeyboard(),
		Markdown: true,
	}}, nil
}
