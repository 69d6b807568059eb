package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	logx "taskcast/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertAndQueryChats(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertChat(ctx, 10, "Ops", true); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	if err := st.UpsertChat(ctx, 11, "Alice", false); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	// Re-registration refreshes the title.
	if err := st.UpsertChat(ctx, 10, "Ops v2", true); err != nil {
		t.Fatalf("UpsertChat update: %v", err)
	}

	all, err := st.QueryChats(ctx, ChatsAll)
	if err != nil {
		t.Fatalf("QueryChats: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(all))
	}
	if all[0].Title != "Ops v2" || !all[0].IsGroup {
		t.Fatalf("upsert did not refresh: %+v", all[0])
	}

	groups, err := st.QueryChats(ctx, ChatsGroup)
	if err != nil {
		t.Fatalf("QueryChats group: %v", err)
	}
	if len(groups) != 1 || groups[0].ChatID != 10 {
		t.Fatalf("group filter = %+v", groups)
	}

	direct, err := st.QueryChats(ctx, ChatsDirect)
	if err != nil {
		t.Fatalf("QueryChats direct: %v", err)
	}
	if len(direct) != 1 || direct[0].ChatID != 11 {
		t.Fatalf("direct filter = %+v", direct)
	}
}

func TestChatGroupLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertChat(ctx, 10, "Ops", true); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	if err := st.UpsertChat(ctx, 11, "Alice", false); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}

	gid, err := st.CreateChatGroup(ctx, "oncall", 42)
	if err != nil {
		t.Fatalf("CreateChatGroup: %v", err)
	}
	if _, err := st.CreateChatGroup(ctx, "oncall", 42); !errors.Is(err, ErrGroupExists) {
		t.Fatalf("duplicate name must fail with ErrGroupExists, got %v", err)
	}

	if err := st.AddChatToGroup(ctx, gid, 10); err != nil {
		t.Fatalf("AddChatToGroup: %v", err)
	}
	if err := st.AddChatToGroup(ctx, gid, 11); err != nil {
		t.Fatalf("AddChatToGroup: %v", err)
	}
	// Adding the same chat twice is a no-op.
	if err := st.AddChatToGroup(ctx, gid, 10); err != nil {
		t.Fatalf("AddChatToGroup repeat: %v", err)
	}

	members, err := st.ListGroupChats(ctx, gid)
	if err != nil {
		t.Fatalf("ListGroupChats: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	groups, err := st.ListChatGroups(ctx, 42)
	if err != nil {
		t.Fatalf("ListChatGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "oncall" || groups[0].ID != gid {
		t.Fatalf("groups = %+v", groups)
	}

	if err := st.DeleteChatGroup(ctx, gid); err != nil {
		t.Fatalf("DeleteChatGroup: %v", err)
	}
	groups, err = st.ListChatGroups(ctx, 42)
	if err != nil {
		t.Fatalf("ListChatGroups after delete: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("group must be gone, got %+v", groups)
	}
	members, err = st.ListGroupChats(ctx, gid)
	if err != nil {
		t.Fatalf("ListGroupChats after delete: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("memberships must be gone, got %+v", members)
	}
}

func TestTaskLifecycleDirectRecipients(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertChat(ctx, 10, "Ops", false); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	if err := st.UpsertChat(ctx, 11, "Dev", false); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}

	taskID, err := st.CreateTaskWithRecipients(ctx, "Submit report", 42, []RecipientRow{
		{ChatID: 10}, {ChatID: 11},
	})
	if err != nil {
		t.Fatalf("CreateTaskWithRecipients: %v", err)
	}

	pending, err := st.PendingTasksForChat(ctx, 10)
	if err != nil {
		t.Fatalf("PendingTasksForChat: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != taskID || pending[0].Text != "Submit report" {
		t.Fatalf("pending = %+v", pending)
	}

	done, err := st.CompleteRecipient(ctx, taskID, 10, "done by ops")
	if err != nil {
		t.Fatalf("CompleteRecipient: %v", err)
	}
	if done {
		t.Fatalf("task must stay open while Dev is pending")
	}

	// Completing the same chat again finds nothing pending.
	if _, err := st.CompleteRecipient(ctx, taskID, 10, "again"); !errors.Is(err, ErrNoPendingTask) {
		t.Fatalf("expected ErrNoPendingTask, got %v", err)
	}

	active, err := st.ListActiveTasks(ctx)
	if err != nil {
		t.Fatalf("ListActiveTasks: %v", err)
	}
	if len(active) != 1 || len(active[0].Recipients) != 2 {
		t.Fatalf("active = %+v", active)
	}
	statuses := map[string]string{}
	for _, r := range active[0].Recipients {
		statuses[r.Title] = r.Status
	}
	if statuses["Ops"] != RecipientCompleted || statuses["Dev"] != RecipientPending {
		t.Fatalf("recipient statuses = %v", statuses)
	}

	done, err = st.CompleteRecipient(ctx, taskID, 11, "done by dev")
	if err != nil {
		t.Fatalf("CompleteRecipient: %v", err)
	}
	if !done {
		t.Fatalf("task must complete with the last recipient")
	}

	active, err = st.ListActiveTasks(ctx)
	if err != nil {
		t.Fatalf("ListActiveTasks: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("completed task must leave the active list, got %+v", active)
	}

	stats, err := st.AggregateStats(ctx)
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.TotalChats != 2 || stats.ActiveTasks != 0 || stats.CompletedTasks != 1 || stats.TotalResponses != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestGroupRecipientPendingAndCompletion(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertChat(ctx, 10, "Ops", true); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	if err := st.UpsertChat(ctx, 11, "Dev", true); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	gid, err := st.CreateChatGroup(ctx, "oncall", 42)
	if err != nil {
		t.Fatalf("CreateChatGroup: %v", err)
	}
	if err := st.AddChatToGroup(ctx, gid, 10); err != nil {
		t.Fatalf("AddChatToGroup: %v", err)
	}
	if err := st.AddChatToGroup(ctx, gid, 11); err != nil {
		t.Fatalf("AddChatToGroup: %v", err)
	}

	taskID, err := st.CreateTaskWithRecipients(ctx, "rotate keys", 42, []RecipientRow{{GroupID: gid}})
	if err != nil {
		t.Fatalf("CreateTaskWithRecipients: %v", err)
	}

	// Member chats see the task through their group membership.
	pending, err := st.PendingTasksForChat(ctx, 10)
	if err != nil {
		t.Fatalf("PendingTasksForChat: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != taskID {
		t.Fatalf("pending via group = %+v", pending)
	}

	// The group row is the selection unit: any member's response completes it.
	done, err := st.CompleteRecipient(ctx, taskID, 11, "rotated")
	if err != nil {
		t.Fatalf("CompleteRecipient: %v", err)
	}
	if !done {
		t.Fatalf("single group recipient must complete the task")
	}

	pending, err = st.PendingTasksForChat(ctx, 10)
	if err != nil {
		t.Fatalf("PendingTasksForChat: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("other members must see nothing pending, got %+v", pending)
	}

	// The active-task view labels the recipient with the group name.
	active, err := st.ListActiveTasks(ctx)
	if err != nil {
		t.Fatalf("ListActiveTasks: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("task completed, active = %+v", active)
	}
}
