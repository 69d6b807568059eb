package bot

import (
	"context"
	"errors"
	"strings"

	"taskcast/internal/storage"
	"taskcast/internal/transport"
	logx "taskcast/pkg/logx"
)

// Repository is the persistence surface the conversation needs.
// *storage.Store satisfies it.
type Repository interface {
	UpsertChat(ctx context.Context, chatID int64, title string, isGroup bool) error
	QueryChats(ctx context.Context, filter storage.ChatFilter) ([]storage.Chat, error)
	CreateChatGroup(ctx context.Context, name string, createdBy int64) (int64, error)
	DeleteChatGroup(ctx context.Context, groupID int64) error
	ListChatGroups(ctx context.Context, createdBy int64) ([]storage.ChatGroup, error)
	AddChatToGroup(ctx context.Context, groupID, chatID int64) error
	ListGroupChats(ctx context.Context, groupID int64) ([]storage.Chat, error)
	CreateTaskWithRecipients(ctx context.Context, text string, createdBy int64, recipients []storage.RecipientRow) (int64, error)
	PendingTasksForChat(ctx context.Context, chatID int64) ([]storage.Task, error)
	CompleteRecipient(ctx context.Context, taskID, chatID int64, responseText string) (bool, error)
	ListActiveTasks(ctx context.Context) ([]storage.TaskDetail, error)
	AggregateStats(ctx context.Context) (storage.Stats, error)
}

// Reply is one outgoing message produced by the controller. The transport
// layer renders Keyboard rows as a reply keyboard.
type Reply struct {
	ChatID         int64
	Text           string
	Keyboard       [][]string
	RemoveKeyboard bool
	Markdown       bool
}

// Controller drives the administrator conversation: the main menu, the
// task wizard, the group wizard, and recipient responses from destination
// chats.
type Controller struct {
	adminID    int64
	labels     *Labels
	sessions   *Sessions
	store      Repository
	dispatcher *Dispatcher
	log        logx.Logger
}

func NewController(adminID int64, labels *Labels, store Repository, dispatcher *Dispatcher, log logx.Logger) *Controller {
	if labels == nil {
		labels = DefaultLabels()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		adminID:    adminID,
		labels:     labels,
		sessions:   NewSessions(16),
		store:      store,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Handle processes one incoming message and returns the replies to send.
// A nil reply slice with nil error means the message was deliberately
// ignored.
func (c *Controller) Handle(ctx context.Context, msg transport.Message) ([]Reply, error) {
	// Replies to the bot's own messages are task responses from
	// destination chats; they bypass the admin gate.
	if msg.ReplyTo != nil && msg.ReplyTo.FromBot {
		return c.handleTaskResponse(ctx, msg)
	}

	if cmd, ok := parseCommand(msg.Text); ok {
		return c.handleCommand(ctx, cmd, msg)
	}

	if msg.FromID != c.adminID {
		// Plain text from non-administrators is dropped without a trace
		// so the bot stays silent in destination chats.
		return nil, nil
	}

	sess := c.sessions.Get(msg.FromID)
	switch sess.State {
	case StateAwaitingTaskText:
		return c.handleTaskText(sess, msg)
	case StateChoosingType:
		return c.handleRecipientType(ctx, sess, msg)
	case StateSelecting:
		return c.handleSelection(ctx, sess, msg)
	case StateAwaitingGroupName:
		return c.handleGroupName(ctx, sess, msg)
	case StateSelectingGroupFill:
		return c.handleGroupFill(ctx, sess, msg)
	default:
		return c.handleIdle(ctx, sess, msg)
	}
}

func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0]
	// Commands in groups arrive as /cmd@BotName.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, true
}

func (c *Controller) handleCommand(ctx context.Context, cmd string, msg transport.Message) ([]Reply, error) {
	switch cmd {
	case "/start":
		if msg.FromID != c.adminID {
			return []Reply{c.text(msg.ChatID, KeyMsgAccessDenied)}, nil
		}
		c.sessions.Get(msg.FromID).Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil

	case "/help":
		if msg.FromID != c.adminID {
			return []Reply{c.text(msg.ChatID, KeyMsgAccessDenied)}, nil
		}
		return []Reply{c.text(msg.ChatID, KeyMsgHelp)}, nil

	case "/addchat":
		if msg.FromID != c.adminID {
			c.log.Warn("unauthorized addchat attempt",
				logx.Int64("from_id", msg.FromID),
				logx.Int64("chat_id", msg.ChatID))
			return nil, nil
		}
		return c.handleAddChat(ctx, msg)

	default:
		if msg.FromID != c.adminID {
			return nil, nil
		}
		return []Reply{c.text(msg.ChatID, KeyMsgUnknownCommand)}, nil
	}
}

func (c *Controller) handleAddChat(ctx context.Context, msg transport.Message) ([]Reply, error) {
	known, err := c.chatKnown(ctx, msg.ChatID)
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}
	if known {
		return []Reply{c.text(msg.ChatID, KeyMsgChatKnown)}, nil
	}
	if err := c.store.UpsertChat(ctx, msg.ChatID, msg.ChatTitle, msg.IsGroup); err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}
	c.log.Info("chat registered",
		logx.Int64("chat_id", msg.ChatID),
		logx.String("title", msg.ChatTitle),
		logx.Bool("is_group", msg.IsGroup))
	return []Reply{c.text(msg.ChatID, KeyMsgChatAdded)}, nil
}

func (c *Controller) chatKnown(ctx context.Context, chatID int64) (bool, error) {
	chats, err := c.store.QueryChats(ctx, storage.ChatsAll)
	if err != nil {
		return false, err
	}
	for _, ch := range chats {
		if ch.ChatID == chatID {
			return true, nil
		}
	}
	return false, nil
}

// ---- idle menu ----

func (c *Controller) handleIdle(ctx context.Context, sess *Session, msg transport.Message) ([]Reply, error) {
	action, ok := c.labels.ActionFor(msg.Text)
	if !ok {
		return []Reply{c.text(msg.ChatID, KeyMsgUnknownCommand)}, nil
	}

	switch action {
	case ActCreateTask:
		sess.State = StateAwaitingTaskText
		return []Reply{{
			ChatID:   msg.ChatID,
			Text:     c.labels.Get(KeyMsgEnterTask),
			Keyboard: c.cancelKeyboard(),
		}}, nil

	case ActViewTasks:
		return c.activeTasksReplies(ctx, msg.ChatID)

	case ActViewChats:
		return c.chatListReply(ctx, msg.ChatID)

	case ActCreateGroup:
		sess.State = StateAwaitingGroupName
		return []Reply{{
			ChatID:   msg.ChatID,
			Text:     c.labels.Get(KeyMsgEnterGroupName),
			Keyboard: c.backKeyboard(),
		}}, nil

	case ActStatistics:
		return c.statsReply(ctx, msg.ChatID)

	case ActSettings:
		return []Reply{c.settingsReply(msg.ChatID)}, nil

	case ActHelp:
		return []Reply{c.text(msg.ChatID, KeyMsgHelp)}, nil

	case ActMainMenu, ActCancel:
		sess.Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil

	case ActManageChats:
		return []Reply{c.manageChatsReply(msg.ChatID)}, nil

	case ActNotifications, ActAccessRights, ActConfiguration, ActRemoveChat:
		return []Reply{c.text(msg.ChatID, KeyMsgInDevelopment)}, nil

	default:
		return []Reply{c.text(msg.ChatID, KeyMsgUnknownCommand)}, nil
	}
}

// ---- task wizard ----

func (c *Controller) handleTaskText(sess *Session, msg transport.Message) ([]Reply, error) {
	if c.isCancel(msg.Text) {
		sess.Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil
	}

	sess.TaskText = msg.Text
	sess.State = StateChoosingType
	return []Reply{{
		ChatID:   msg.ChatID,
		Text:     c.labels.Get(KeyMsgChooseType),
		Keyboard: c.typeKeyboard(),
	}}, nil
}

func (c *Controller) handleRecipientType(ctx context.Context, sess *Session, msg transport.Message) ([]Reply, error) {
	if c.isCancel(msg.Text) {
		sess.Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil
	}

	action, _ := c.labels.ActionFor(msg.Text)
	var rtype RecipientType
	switch action {
	case ActTypeGroupChats:
		rtype = RecipientsGroupChats
	case ActTypeDirectChats:
		rtype = RecipientsDirectChats
	case ActTypeChatGroups:
		rtype = RecipientsChatGroups
	default:
		return []Reply{c.text(msg.ChatID, KeyMsgUnknownChoice)}, nil
	}

	candidates, err := c.candidatesForType(ctx, rtype)
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}

	if len(candidates) == 0 {
		key := KeyMsgNoChats
		if rtype == RecipientsChatGroups {
			key = KeyMsgNoGroups
		}
		return []Reply{{
			ChatID:   msg.ChatID,
			Text:     c.labels.Get(key),
			Keyboard: c.backKeyboard(),
		}}, nil
	}

	sess.RecipientType = rtype
	sess.Selection = NewSelection(candidates)
	sess.State = StateSelecting
	return []Reply{{
		ChatID:   msg.ChatID,
		Text:     c.labels.Get(KeyMsgChooseRecipients),
		Keyboard: sess.Selection.Checklist(c.labels, KeyBtnConfirm),
	}}, nil
}

func (c *Controller) handleSelection(ctx context.Context, sess *Session, msg transport.Message) ([]Reply, error) {
	if c.isCancel(msg.Text) {
		sess.Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil
	}

	if action, _ := c.labels.ActionFor(msg.Text); action == ActConfirm {
		if sess.Selection == nil || sess.Selection.Len() == 0 {
			return []Reply{c.text(msg.ChatID, KeyMsgEmptySelection)}, nil
		}
		// The acknowledgement text is the same whether every delivery
		// succeeded or not; per-chat outcomes stay in the dispatch log.
		if _, err := c.dispatcher.Dispatch(ctx, sess.TaskText, c.adminID, sess.RecipientType, sess.Selection.Selected()); err != nil {
			return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
		}
		sess.Reset()
		return []Reply{
			c.text(msg.ChatID, KeyMsgDispatchAck),
			c.menuReply(msg.ChatID),
		}, nil
	}

	// Candidates are re-queried on every toggle; only the picked set
	// lives in the session.
	candidates, err := c.candidatesForType(ctx, sess.RecipientType)
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}
	sess.Selection.Reload(candidates)

	if !sess.Selection.Toggle(msg.Text, c.labels) {
		return []Reply{c.text(msg.ChatID, KeyMsgUnknownChoice)}, nil
	}
	return []Reply{{
		ChatID:   msg.ChatID,
		Text:     c.labels.Get(KeyMsgChooseRecipients),
		Keyboard: sess.Selection.Checklist(c.labels, KeyBtnConfirm),
	}}, nil
}

// ---- group wizard ----

func (c *Controller) handleGroupName(ctx context.Context, sess *Session, msg transport.Message) ([]Reply, error) {
	if c.isCancel(msg.Text) {
		sess.Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil
	}

	name := strings.TrimSpace(msg.Text)
	groupID, err := c.store.CreateChatGroup(ctx, name, c.adminID)
	if errors.Is(err, storage.ErrGroupExists) {
		return []Reply{{
			ChatID:   msg.ChatID,
			Text:     c.labels.Get(KeyMsgGroupExists),
			Keyboard: c.backKeyboard(),
		}}, nil
	}
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}

	candidates, err := c.chatCandidates(ctx, storage.ChatsAll)
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}
	if len(candidates) == 0 {
		// Nothing to fill the group with; undo the eager create.
		if derr := c.store.DeleteChatGroup(ctx, groupID); derr != nil {
			c.log.Warn("orphan group cleanup failed",
				logx.Int64("group_id", groupID), logx.Err(derr))
		}
		sess.Reset()
		return []Reply{
			c.text(msg.ChatID, KeyMsgNoChats),
			c.menuReply(msg.ChatID),
		}, nil
	}

	sess.GroupID = groupID
	sess.GroupName = name
	sess.Selection = NewSelection(candidates)
	sess.State = StateSelectingGroupFill
	return []Reply{{
		ChatID:   msg.ChatID,
		Text:     c.labels.Get(KeyMsgChooseGroupChats),
		Keyboard: sess.Selection.Checklist(c.labels, KeyBtnFinish),
	}}, nil
}

func (c *Controller) handleGroupFill(ctx context.Context, sess *Session, msg transport.Message) ([]Reply, error) {
	if c.isCancel(msg.Text) {
		// The group row was created before chat selection; cancelling
		// must remove it again.
		if err := c.store.DeleteChatGroup(ctx, sess.GroupID); err != nil {
			c.log.Warn("group rollback failed",
				logx.Int64("group_id", sess.GroupID), logx.Err(err))
		}
		sess.Reset()
		return []Reply{c.menuReply(msg.ChatID)}, nil
	}

	if action, _ := c.labels.ActionFor(msg.Text); action == ActFinish {
		if sess.Selection == nil || sess.Selection.Len() == 0 {
			return []Reply{c.text(msg.ChatID, KeyMsgEmptySelection)}, nil
		}
		for _, cand := range sess.Selection.Selected() {
			if err := c.store.AddChatToGroup(ctx, sess.GroupID, cand.ID); err != nil {
				return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
			}
		}
		c.log.Info("chat group created",
			logx.Int64("group_id", sess.GroupID),
			logx.String("name", sess.GroupName),
			logx.Int("members", sess.Selection.Len()))
		sess.Reset()
		return []Reply{
			c.text(msg.ChatID, KeyMsgGroupCreated),
			c.menuReply(msg.ChatID),
		}, nil
	}

	candidates, err := c.chatCandidates(ctx, storage.ChatsAll)
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}
	sess.Selection.Reload(candidates)

	if !sess.Selection.Toggle(msg.Text, c.labels) {
		return []Reply{c.text(msg.ChatID, KeyMsgUnknownChoice)}, nil
	}
	return []Reply{{
		ChatID:   msg.ChatID,
		Text:     c.labels.Get(KeyMsgChooseGroupChats),
		Keyboard: sess.Selection.Checklist(c.labels, KeyBtnFinish),
	}}, nil
}

// ---- task responses from destination chats ----

func (c *Controller) handleTaskResponse(ctx context.Context, msg transport.Message) ([]Reply, error) {
	prefix := c.labels.Get(KeyMsgTaskPrefix)
	if !strings.HasPrefix(msg.ReplyTo.Text, prefix) {
		return []Reply{c.text(msg.ChatID, KeyMsgNotATask)}, nil
	}
	taskText := strings.TrimSpace(strings.TrimPrefix(msg.ReplyTo.Text, prefix))

	pending, err := c.store.PendingTasksForChat(ctx, msg.ChatID)
	if err != nil {
		return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
	}

	for _, t := range pending {
		if strings.TrimSpace(t.Text) != taskText {
			continue
		}
		done, err := c.store.CompleteRecipient(ctx, t.ID, msg.ChatID, msg.Text)
		if errors.Is(err, storage.ErrNoPendingTask) {
			break
		}
		if err != nil {
			return []Reply{c.text(msg.ChatID, KeyMsgInternalError)}, err
		}
		c.log.Info("task response recorded",
			logx.Int64("task_id", t.ID),
			logx.Int64("chat_id", msg.ChatID),
			logx.Bool("task_done", done))
		return []Reply{c.text(msg.ChatID, KeyMsgResponseAccepted)}, nil
	}
	return []Reply{c.text(msg.ChatID, KeyMsgNoPendingTask)}, nil
}

// ---- helpers ----

func (c *Controller) candidatesForType(ctx context.Context, rtype RecipientType) ([]Candidate, error) {
	switch rtype {
	case RecipientsGroupChats:
		return c.chatCandidates(ctx, storage.ChatsGroup)
	case RecipientsDirectChats:
		return c.chatCandidates(ctx, storage.ChatsDirect)
	default:
		return c.groupCandidates(ctx)
	}
}

func (c *Controller) chatCandidates(ctx context.Context, filter storage.ChatFilter) ([]Candidate, error) {
	chats, err := c.store.QueryChats(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(chats))
	for _, ch := range chats {
		out = append(out, Candidate{ID: ch.ChatID, Title: ch.Title})
	}
	return out, nil
}

func (c *Controller) groupCandidates(ctx context.Context) ([]Candidate, error) {
	groups, err := c.store.ListChatGroups(ctx, c.adminID)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(groups))
	for _, g := range groups {
		out = append(out, Candidate{ID: g.ID, Title: g.Name})
	}
	return out, nil
}

func (c *Controller) isCancel(text string) bool {
	a, ok := c.labels.ActionFor(text)
	return ok && a == ActCancel
}
