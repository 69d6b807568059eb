package bot

import "sync"

// State is the wizard position for one administrator conversation.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingTaskText   State = "awaiting_task_text"
	StateChoosingType       State = "choosing_recipient_type"
	StateSelecting          State = "selecting_recipients"
	StateAwaitingGroupName  State = "awaiting_group_name"
	StateSelectingGroupFill State = "selecting_chats_for_group"
)

// RecipientType is the candidate category picked before selection.
type RecipientType string

const (
	RecipientsGroupChats  RecipientType = "group_chats"
	RecipientsDirectChats RecipientType = "direct_chats"
	RecipientsChatGroups  RecipientType = "chat_groups"
)

// Session holds the per-administrator wizard state. It lives only in
// memory; a restart drops any conversation mid-wizard.
type Session struct {
	State         State
	TaskText      string
	RecipientType RecipientType
	Selection     *Selection
	GroupID       int64 // group being filled in the group wizard
	GroupName     string
}

// Reset clears everything back to idle. Used on cancel, confirm, and
// return-to-menu.
func (s *Session) Reset() {
	*s = Session{State: StateIdle}
}

// Sessions is a bounded table of conversation sessions keyed by user ID.
// The bot serves a single administrator, but keying by ID keeps the
// controller correct if more administrators are ever allowed, and the
// bound caps memory against abuse.
type Sessions struct {
	mu    sync.Mutex
	max   int
	table map[int64]*Session
}

func NewSessions(max int) *Sessions {
	if max <= 0 {
		max = 16
	}
	return &Sessions{max: max, table: make(map[int64]*Session)}
}

// Get returns the session for the user, creating an idle one on first use.
// When the table is full, new users get a throwaway idle session that is
// not retained.
func (s *Sessions) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.table[userID]; ok {
		return sess
	}
	sess := &Session{State: StateIdle}
	if len(s.table) < s.max {
		s.table[userID] = sess
	}
	return sess
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}
