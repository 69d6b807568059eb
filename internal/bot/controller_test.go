package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"taskcast/internal/storage"
	"taskcast/internal/transport"
	logx "taskcast/pkg/logx"
)

const adminID int64 = 42

type fakeTask struct {
	id         int64
	text       string
	status     string
	recipients []storage.RecipientRow
	recStatus  []string
}

type fakeRepo struct {
	chats     []storage.Chat
	groups    []storage.ChatGroup
	members   map[int64][]int64 // group id -> chat ids
	tasks     []*fakeTask
	responses int
	nextID    int64

	deletedGroups []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{members: map[int64][]int64{}, nextID: 1}
}

func (f *fakeRepo) UpsertChat(_ context.Context, chatID int64, title string, isGroup bool) error {
	for i := range f.chats {
		if f.chats[i].ChatID == chatID {
			f.chats[i].Title = title
			f.chats[i].IsGroup = isGroup
			return nil
		}
	}
	f.chats = append(f.chats, storage.Chat{ChatID: chatID, Title: title, IsGroup: isGroup})
	return nil
}

func (f *fakeRepo) QueryChats(_ context.Context, filter storage.ChatFilter) ([]storage.Chat, error) {
	var out []storage.Chat
	for _, c := range f.chats {
		switch filter {
		case storage.ChatsGroup:
			if !c.IsGroup {
				continue
			}
		case storage.ChatsDirect:
			if c.IsGroup {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) CreateChatGroup(_ context.Context, name string, createdBy int64) (int64, error) {
	for _, g := range f.groups {
		if g.Name == name {
			return 0, storage.ErrGroupExists
		}
	}
	id := f.nextID
	f.nextID++
	f.groups = append(f.groups, storage.ChatGroup{ID: id, Name: name, CreatedBy: createdBy})
	return id, nil
}

func (f *fakeRepo) DeleteChatGroup(_ context.Context, groupID int64) error {
	f.deletedGroups = append(f.deletedGroups, groupID)
	for i, g := range f.groups {
		if g.ID == groupID {
			f.groups = append(f.groups[:i], f.groups[i+1:]...)
			break
		}
	}
	delete(f.members, groupID)
	return nil
}

func (f *fakeRepo) ListChatGroups(_ context.Context, _ int64) ([]storage.ChatGroup, error) {
	return append([]storage.ChatGroup(nil), f.groups...), nil
}

func (f *fakeRepo) AddChatToGroup(_ context.Context, groupID, chatID int64) error {
	for _, id := range f.members[groupID] {
		if id == chatID {
			return nil
		}
	}
	f.members[groupID] = append(f.members[groupID], chatID)
	return nil
}

func (f *fakeRepo) ListGroupChats(_ context.Context, groupID int64) ([]storage.Chat, error) {
	var out []storage.Chat
	for _, id := range f.members[groupID] {
		for _, c := range f.chats {
			if c.ChatID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTaskWithRecipients(_ context.Context, text string, _ int64, recipients []storage.RecipientRow) (int64, error) {
	id := f.nextID
	f.nextID++
	t := &fakeTask{id: id, text: text, status: storage.TaskActive}
	t.recipients = append(t.recipients, recipients...)
	t.recStatus = make([]string, len(recipients))
	for i := range t.recStatus {
		t.recStatus[i] = storage.RecipientPending
	}
	f.tasks = append(f.tasks, t)
	return id, nil
}

func (f *fakeRepo) memberOf(chatID int64) map[int64]bool {
	out := map[int64]bool{}
	for gid, ids := range f.members {
		for _, id := range ids {
			if id == chatID {
				out[gid] = true
			}
		}
	}
	return out
}

func (f *fakeRepo) PendingTasksForChat(_ context.Context, chatID int64) ([]storage.Task, error) {
	groups := f.memberOf(chatID)
	var out []storage.Task
	for _, t := range f.tasks {
		if t.status != storage.TaskActive {
			continue
		}
		for i, r := range t.recipients {
			if t.recStatus[i] == storage.RecipientCompleted {
				continue
			}
			if r.ChatID == chatID || (r.GroupID != 0 && groups[r.GroupID]) {
				out = append(out, storage.Task{ID: t.id, Text: t.text, Status: t.status})
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) CompleteRecipient(_ context.Context, taskID, chatID int64, _ string) (bool, error) {
	groups := f.memberOf(chatID)
	for _, t := range f.tasks {
		if t.id != taskID {
			continue
		}
		hit := false
		for i, r := range t.recipients {
			if t.recStatus[i] == storage.RecipientCompleted {
				continue
			}
			if r.ChatID == chatID || (r.GroupID != 0 && groups[r.GroupID]) {
				t.recStatus[i] = storage.RecipientCompleted
				hit = true
			}
		}
		if !hit {
			return false, storage.ErrNoPendingTask
		}
		f.responses++
		for _, st := range t.recStatus {
			if st != storage.RecipientCompleted {
				return false, nil
			}
		}
		t.status = storage.TaskCompleted
		return true, nil
	}
	return false, storage.ErrNoPendingTask
}

func (f *fakeRepo) ListActiveTasks(_ context.Context) ([]storage.TaskDetail, error) {
	var out []storage.TaskDetail
	for _, t := range f.tasks {
		if t.status != storage.TaskActive {
			continue
		}
		d := storage.TaskDetail{ID: t.id, Text: t.text}
		for i, r := range t.recipients {
			title := fmt.Sprintf("chat-%d", r.ChatID)
			if r.GroupID != 0 {
				title = fmt.Sprintf("group-%d", r.GroupID)
			}
			d.Recipients = append(d.Recipients, storage.RecipientStatus{Title: title, Status: t.recStatus[i]})
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRepo) AggregateStats(_ context.Context) (storage.Stats, error) {
	st := storage.Stats{TotalChats: len(f.chats), TotalResponses: f.responses}
	for _, t := range f.tasks {
		if t.status == storage.TaskActive {
			st.ActiveTasks++
		} else {
			st.CompletedTasks++
		}
	}
	return st, nil
}

type fakeNotifier struct {
	sent   []int64
	texts  []string
	failAt map[int64]bool
}

func (n *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	if n.failAt[chatID] {
		return errors.New("send failed")
	}
	n.sent = append(n.sent, chatID)
	n.texts = append(n.texts, text)
	return nil
}

type fixture struct {
	repo     *fakeRepo
	notifier *fakeNotifier
	ctrl     *Controller
	labels   *Labels
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	notifier := &fakeNotifier{failAt: map[int64]bool{}}
	labels := DefaultLabels()
	d := NewDispatcher(repo, notifier, labels, logx.Nop())
	c := NewController(adminID, labels, repo, d, logx.Nop())
	return &fixture{repo: repo, notifier: notifier, ctrl: c, labels: labels}
}

func (fx *fixture) adminMsg(text string) transport.Message {
	return transport.Message{ChatID: adminID, FromID: adminID, Text: text}
}

func (fx *fixture) press(t *testing.T, key string) []Reply {
	t.Helper()
	return fx.send(t, fx.labels.Get(key))
}

func (fx *fixture) send(t *testing.T, text string) []Reply {
	t.Helper()
	replies, err := fx.ctrl.Handle(context.Background(), fx.adminMsg(text))
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	return replies
}

func lastText(replies []Reply) string {
	if len(replies) == 0 {
		return ""
	}
	return replies[len(replies)-1].Text
}

func TestNonAdminTextDropped(t *testing.T) {
	fx := newFixture(t)
	replies, err := fx.ctrl.Handle(context.Background(), transport.Message{
		ChatID: 100, FromID: 100, Text: "hello",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 0 {
		t.Fatalf("expected silence for non-admin text, got %d replies", len(replies))
	}
}

func TestStartCommandAccess(t *testing.T) {
	fx := newFixture(t)

	replies, err := fx.ctrl.Handle(context.Background(), transport.Message{
		ChatID: 100, FromID: 100, Text: "/start",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || replies[0].Text != fx.labels.Get(KeyMsgAccessDenied) {
		t.Fatalf("expected access denied for non-admin /start, got %+v", replies)
	}

	replies = fx.send(t, "/start")
	if len(replies) != 1 || replies[0].Text != fx.labels.Get(KeyMsgMenu) {
		t.Fatalf("expected main menu for admin /start, got %+v", replies)
	}
	if len(replies[0].Keyboard) == 0 {
		t.Fatalf("main menu must carry a keyboard")
	}
}

func TestCommandWithBotMention(t *testing.T) {
	fx := newFixture(t)
	replies := fx.send(t, "/help@TaskBot")
	if len(replies) != 1 || replies[0].Text != fx.labels.Get(KeyMsgHelp) {
		t.Fatalf("expected help text, got %+v", replies)
	}
}

func TestAddChatUpsertAndRepeat(t *testing.T) {
	fx := newFixture(t)
	msg := transport.Message{ChatID: 500, ChatTitle: "Ops", IsGroup: true, FromID: adminID, Text: "/addchat"}

	replies, err := fx.ctrl.Handle(context.Background(), msg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if lastText(replies) != fx.labels.Get(KeyMsgChatAdded) {
		t.Fatalf("expected chat-added reply, got %q", lastText(replies))
	}
	if len(fx.repo.chats) != 1 || fx.repo.chats[0].Title != "Ops" || !fx.repo.chats[0].IsGroup {
		t.Fatalf("chat not stored: %+v", fx.repo.chats)
	}

	replies, err = fx.ctrl.Handle(context.Background(), msg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if lastText(replies) != fx.labels.Get(KeyMsgChatKnown) {
		t.Fatalf("expected already-known reply, got %q", lastText(replies))
	}

	// Non-admin /addchat is silently ignored.
	replies, err = fx.ctrl.Handle(context.Background(), transport.Message{
		ChatID: 501, FromID: 99, Text: "/addchat",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 0 {
		t.Fatalf("non-admin /addchat must be dropped, got %+v", replies)
	}
}

func TestDirectChatTaskFlow(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{
		{ChatID: 10, Title: "Ops"},
		{ChatID: 11, Title: "Dev"},
	}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "Submit report")
	replies := fx.press(t, KeyBtnTypeDirectChats)
	if len(replies) != 1 || len(replies[0].Keyboard) != 4 {
		// Two candidates + confirm row + cancel row.
		t.Fatalf("expected 4 keyboard rows, got %+v", replies)
	}

	fx.send(t, "⬜ Ops")
	replies = fx.press(t, KeyBtnConfirm)

	if replies[0].Text != fx.labels.Get(KeyMsgDispatchAck) {
		t.Fatalf("ack = %q", replies[0].Text)
	}
	if lastText(replies) != fx.labels.Get(KeyMsgMenu) {
		t.Fatalf("expected return to menu after dispatch")
	}

	if len(fx.repo.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(fx.repo.tasks))
	}
	task := fx.repo.tasks[0]
	if task.text != "Submit report" {
		t.Fatalf("task text = %q", task.text)
	}
	if len(task.recipients) != 1 || task.recipients[0].ChatID != 10 {
		t.Fatalf("recipients = %+v", task.recipients)
	}
	if len(fx.notifier.sent) != 1 || fx.notifier.sent[0] != 10 {
		t.Fatalf("sent = %v", fx.notifier.sent)
	}
	if !strings.Contains(fx.notifier.texts[0], "Submit report") {
		t.Fatalf("delivered text = %q", fx.notifier.texts[0])
	}
	if !strings.HasPrefix(fx.notifier.texts[0], fx.labels.Get(KeyMsgTaskPrefix)) {
		t.Fatalf("delivered text missing task prefix: %q", fx.notifier.texts[0])
	}
}

func TestMultiRecipientRowsPerChat(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{
		{ChatID: 10, Title: "Ops"},
		{ChatID: 11, Title: "Dev"},
		{ChatID: 12, Title: "QA"},
	}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "standup")
	fx.press(t, KeyBtnTypeDirectChats)
	fx.send(t, "⬜ Ops")
	fx.send(t, "⬜ QA")
	fx.press(t, KeyBtnConfirm)

	task := fx.repo.tasks[0]
	if len(task.recipients) != 2 {
		t.Fatalf("expected 2 recipient rows, got %d", len(task.recipients))
	}
	// Selection order is preserved in persistence and delivery.
	if task.recipients[0].ChatID != 10 || task.recipients[1].ChatID != 12 {
		t.Fatalf("recipient order = %+v", task.recipients)
	}
	if len(fx.notifier.sent) != 2 || fx.notifier.sent[0] != 10 || fx.notifier.sent[1] != 12 {
		t.Fatalf("send order = %v", fx.notifier.sent)
	}
}

func TestChatGroupRecipientExpansion(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{
		{ChatID: 10, Title: "Ops", IsGroup: true},
		{ChatID: 11, Title: "Dev", IsGroup: true},
		{ChatID: 12, Title: "QA"},
	}
	fx.repo.groups = []storage.ChatGroup{{ID: 7, Name: "oncall"}}
	fx.repo.members[7] = []int64{10, 11, 12}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "rotate keys")
	fx.press(t, KeyBtnTypeChatGroups)
	fx.send(t, "⬜ oncall")
	replies := fx.press(t, KeyBtnConfirm)

	task := fx.repo.tasks[0]
	// One selection unit keyed by group id, not one row per member.
	if len(task.recipients) != 1 || task.recipients[0].GroupID != 7 || task.recipients[0].ChatID != 0 {
		t.Fatalf("recipients = %+v", task.recipients)
	}
	// Delivery expands to every member chat.
	if len(fx.notifier.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %v", fx.notifier.sent)
	}
	if replies[0].Text != fx.labels.Get(KeyMsgDispatchAck) {
		t.Fatalf("ack = %q", replies[0].Text)
	}
}

func TestDeliveryFailureContinuesFanOut(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{
		{ChatID: 10, Title: "Ops"},
		{ChatID: 11, Title: "Dev"},
	}
	fx.notifier.failAt[10] = true

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "ping")
	fx.press(t, KeyBtnTypeDirectChats)
	fx.send(t, "⬜ Ops")
	fx.send(t, "⬜ Dev")
	replies := fx.press(t, KeyBtnConfirm)

	if len(fx.notifier.sent) != 1 || fx.notifier.sent[0] != 11 {
		t.Fatalf("expected fan-out to continue past failure, sent = %v", fx.notifier.sent)
	}
	// The acknowledgement text is identical to the all-delivered case;
	// the failed send is visible only in the logs.
	if replies[0].Text != fx.labels.Get(KeyMsgDispatchAck) {
		t.Fatalf("ack = %q, want %q", replies[0].Text, fx.labels.Get(KeyMsgDispatchAck))
	}
	if len(fx.repo.tasks) != 1 || len(fx.repo.tasks[0].recipients) != 2 {
		t.Fatalf("both recipient rows must persist despite the failed send")
	}
}

func TestChecklistRefreshesAfterMidWizardAddChat(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops"}}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "deploy")
	fx.press(t, KeyBtnTypeDirectChats)

	// A new chat registers itself while the selection screen is open.
	replies, err := fx.ctrl.Handle(context.Background(), transport.Message{
		ChatID: 11, ChatTitle: "Dev", FromID: adminID, Text: "/addchat",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if lastText(replies) != fx.labels.Get(KeyMsgChatAdded) {
		t.Fatalf("addchat reply = %q", lastText(replies))
	}

	// The next toggle re-renders the checklist from the repository, so
	// the new chat appears and the earlier toggle survives.
	replies = fx.send(t, "⬜ Ops")
	var flat []string
	for _, row := range replies[0].Keyboard {
		flat = append(flat, row...)
	}
	joined := strings.Join(flat, "|")
	if !strings.Contains(joined, "⬜ Dev") {
		t.Fatalf("checklist missing newly registered chat: %v", replies[0].Keyboard)
	}
	if !strings.Contains(joined, "✅ Ops") {
		t.Fatalf("existing toggle lost on refresh: %v", replies[0].Keyboard)
	}

	// The new chat is selectable right away.
	fx.send(t, "⬜ Dev")
	fx.press(t, KeyBtnConfirm)
	if len(fx.repo.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(fx.repo.tasks))
	}
	task := fx.repo.tasks[0]
	if len(task.recipients) != 2 || task.recipients[0].ChatID != 10 || task.recipients[1].ChatID != 11 {
		t.Fatalf("recipients = %+v", task.recipients)
	}
}

func TestGroupFillChecklistRefreshesAfterAddChat(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops"}}

	fx.press(t, KeyBtnCreateGroup)
	fx.send(t, "oncall")

	if _, err := fx.ctrl.Handle(context.Background(), transport.Message{
		ChatID: 11, ChatTitle: "Dev", FromID: adminID, Text: "/addchat",
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	replies := fx.send(t, "⬜ Ops")
	var flat []string
	for _, row := range replies[0].Keyboard {
		flat = append(flat, row...)
	}
	if !strings.Contains(strings.Join(flat, "|"), "⬜ Dev") {
		t.Fatalf("group checklist missing newly registered chat: %v", replies[0].Keyboard)
	}

	fx.send(t, "⬜ Dev")
	fx.press(t, KeyBtnFinish)
	groupID := fx.repo.groups[0].ID
	if got := fx.repo.members[groupID]; len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("group members = %v", got)
	}
}

func TestEmptySelectionConfirmKeepsState(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops"}}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "task")
	fx.press(t, KeyBtnTypeDirectChats)

	replies := fx.press(t, KeyBtnConfirm)
	if lastText(replies) != fx.labels.Get(KeyMsgEmptySelection) {
		t.Fatalf("expected empty-selection validation, got %q", lastText(replies))
	}
	if len(fx.repo.tasks) != 0 {
		t.Fatalf("no task may be created on empty confirm")
	}

	// State is unchanged: toggling still works and confirm then succeeds.
	fx.send(t, "⬜ Ops")
	fx.press(t, KeyBtnConfirm)
	if len(fx.repo.tasks) != 1 {
		t.Fatalf("expected dispatch after fixing the selection")
	}
}

func TestCancelClearsWizard(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops"}}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "task")
	fx.press(t, KeyBtnTypeDirectChats)
	fx.send(t, "⬜ Ops")

	replies := fx.press(t, KeyBtnCancel)
	if lastText(replies) != fx.labels.Get(KeyMsgMenu) {
		t.Fatalf("cancel must return to the menu, got %q", lastText(replies))
	}

	// Back at idle: the old selection is gone and plain text is not a toggle.
	replies = fx.send(t, "⬜ Ops")
	if lastText(replies) != fx.labels.Get(KeyMsgUnknownCommand) {
		t.Fatalf("expected idle unknown-command, got %q", lastText(replies))
	}
	if len(fx.repo.tasks) != 0 {
		t.Fatalf("cancel must not dispatch")
	}
}

func TestGroupWizardCreateAndFill(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{
		{ChatID: 10, Title: "Ops", IsGroup: true},
		{ChatID: 12, Title: "QA"},
	}

	fx.press(t, KeyBtnCreateGroup)
	fx.send(t, "oncall")
	fx.send(t, "⬜ Ops")
	fx.send(t, "⬜ QA")
	replies := fx.press(t, KeyBtnFinish)

	if replies[0].Text != fx.labels.Get(KeyMsgGroupCreated) {
		t.Fatalf("expected group-created reply, got %q", replies[0].Text)
	}
	if len(fx.repo.groups) != 1 || fx.repo.groups[0].Name != "oncall" {
		t.Fatalf("groups = %+v", fx.repo.groups)
	}
	got := fx.repo.members[fx.repo.groups[0].ID]
	if len(got) != 2 || got[0] != 10 || got[1] != 12 {
		t.Fatalf("members = %v", got)
	}
}

func TestGroupWizardDuplicateName(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops"}}
	fx.repo.groups = []storage.ChatGroup{{ID: 1, Name: "oncall"}}
	fx.repo.nextID = 2

	fx.press(t, KeyBtnCreateGroup)
	replies := fx.send(t, "oncall")
	if lastText(replies) != fx.labels.Get(KeyMsgGroupExists) {
		t.Fatalf("expected duplicate-name rejection, got %q", lastText(replies))
	}

	// Still awaiting a name: a fresh name proceeds to chat selection.
	replies = fx.send(t, "oncall-2")
	if lastText(replies) != fx.labels.Get(KeyMsgChooseGroupChats) {
		t.Fatalf("expected chat selection prompt, got %q", lastText(replies))
	}
}

func TestGroupWizardCancelRollsBack(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops"}}

	fx.press(t, KeyBtnCreateGroup)
	fx.send(t, "doomed")
	if len(fx.repo.groups) != 1 {
		t.Fatalf("group row is created before chat selection")
	}
	gid := fx.repo.groups[0].ID

	fx.press(t, KeyBtnBack)
	if len(fx.repo.groups) != 0 {
		t.Fatalf("cancel must delete the eagerly created group")
	}
	if len(fx.repo.deletedGroups) != 1 || fx.repo.deletedGroups[0] != gid {
		t.Fatalf("deletedGroups = %v", fx.repo.deletedGroups)
	}
}

func TestNoCandidatesForType(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{{ChatID: 10, Title: "Ops", IsGroup: true}}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "task")
	replies := fx.press(t, KeyBtnTypeDirectChats)
	if lastText(replies) != fx.labels.Get(KeyMsgNoChats) {
		t.Fatalf("expected no-chats notice, got %q", lastText(replies))
	}

	// Still choosing the type: another category works.
	replies = fx.press(t, KeyBtnTypeGroupChats)
	if lastText(replies) != fx.labels.Get(KeyMsgChooseRecipients) {
		t.Fatalf("expected recipient selection, got %q", lastText(replies))
	}
}

func TestTaskResponseCompletesRecipient(t *testing.T) {
	fx := newFixture(t)
	fx.repo.chats = []storage.Chat{
		{ChatID: 10, Title: "Ops"},
		{ChatID: 11, Title: "Dev"},
	}

	fx.press(t, KeyBtnCreateTask)
	fx.send(t, "Submit report")
	fx.press(t, KeyBtnTypeDirectChats)
	fx.send(t, "⬜ Ops")
	fx.send(t, "⬜ Dev")
	fx.press(t, KeyBtnConfirm)

	reply := func(chatID int64) []Reply {
		replies, err := fx.ctrl.Handle(context.Background(), transport.Message{
			ChatID: chatID, FromID: 900 + chatID, Text: "done",
			ReplyTo: &transport.ReplyRef{
				FromBot: true,
				Text:    fx.labels.Get(KeyMsgTaskPrefix) + " Submit report",
			},
		})
		if err != nil {
			t.Fatalf("Handle response: %v", err)
		}
		return replies
	}

	replies := reply(10)
	if lastText(replies) != fx.labels.Get(KeyMsgResponseAccepted) {
		t.Fatalf("expected acceptance, got %q", lastText(replies))
	}
	if fx.repo.tasks[0].status != storage.TaskActive {
		t.Fatalf("task must stay active while Dev is pending")
	}

	reply(11)
	if fx.repo.tasks[0].status != storage.TaskCompleted {
		t.Fatalf("task must complete when the last recipient responds")
	}

	// A third response finds nothing pending.
	replies = reply(10)
	if lastText(replies) != fx.labels.Get(KeyMsgNoPendingTask) {
		t.Fatalf("expected no-pending notice, got %q", lastText(replies))
	}
}

func TestTaskResponseRequiresTaskMessage(t *testing.T) {
	fx := newFixture(t)
	replies, err := fx.ctrl.Handle(context.Background(), transport.Message{
		ChatID: 10, FromID: 901, Text: "done",
		ReplyTo: &transport.ReplyRef{FromBot: true, Text: "something else"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if lastText(replies) != fx.labels.Get(KeyMsgNotATask) {
		t.Fatalf("expected not-a-task notice, got %q", lastText(replies))
	}
}

func TestSettingsStubsAndViews(t *testing.T) {
	fx := newFixture(t)

	replies := fx.press(t, KeyBtnSettings)
	if replies[0].Text != fx.labels.Get(KeyMsgSettings) {
		t.Fatalf("settings reply = %q", replies[0].Text)
	}

	replies = fx.press(t, KeyBtnNotifications)
	if lastText(replies) != fx.labels.Get(KeyMsgInDevelopment) {
		t.Fatalf("expected in-development stub, got %q", lastText(replies))
	}

	replies = fx.press(t, KeyBtnViewTasks)
	if lastText(replies) != fx.labels.Get(KeyMsgNoActiveTasks) {
		t.Fatalf("expected empty task list, got %q", lastText(replies))
	}

	replies = fx.press(t, KeyBtnViewChats)
	if lastText(replies) != fx.labels.Get(KeyMsgNoChats) {
		t.Fatalf("expected empty chat list, got %q", lastText(replies))
	}

	replies = fx.press(t, KeyBtnStatistics)
	if !replies[0].Markdown {
		t.Fatalf("statistics view must use markdown")
	}
}

func TestPanicRecoverMiddleware(t *testing.T) {
	boom := func(context.Context, transport.Message) ([]Reply, error) {
		panic("kaboom")
	}
	h := Chain(boom, MWPanicRecover(logx.Nop(), "oops"))

	replies, err := h(context.Background(), transport.Message{ChatID: 5})
	if err == nil {
		t.Fatalf("expected an error from the recovered panic")
	}
	if len(replies) != 1 || replies[0].Text != "oops" || replies[0].ChatID != 5 {
		t.Fatalf("expected the generic fallback reply, got %+v", replies)
	}
}
