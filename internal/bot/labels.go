package bot

// Action identifies a menu button independently of its display text, so
// button labels can be re-worded from config without touching routing.
type Action string

const (
	ActNone Action = ""

	ActCreateTask  Action = "create_task"
	ActViewTasks   Action = "view_tasks"
	ActViewChats   Action = "view_chats"
	ActCreateGroup Action = "create_group"
	ActStatistics  Action = "statistics"
	ActSettings    Action = "settings"
	ActHelp        Action = "help"
	ActMainMenu    Action = "main_menu"

	ActManageChats   Action = "manage_chats"
	ActNotifications Action = "notifications"
	ActAccessRights  Action = "access_rights"
	ActConfiguration Action = "configuration"
	ActRemoveChat    Action = "remove_chat"

	ActTypeGroupChats  Action = "type_group_chats"
	ActTypeDirectChats Action = "type_direct_chats"
	ActTypeChatGroups  Action = "type_chat_groups"

	ActConfirm Action = "confirm"
	ActFinish  Action = "finish"
	ActCancel  Action = "cancel"
)

// Label keys. Button keys participate in reverse (text to action) lookup,
// message keys are display-only.
const (
	KeyBtnCreateTask  = "btn.create_task"
	KeyBtnViewTasks   = "btn.view_tasks"
	KeyBtnViewChats   = "btn.view_chats"
	KeyBtnCreateGroup = "btn.create_group"
	KeyBtnStatistics  = "btn.statistics"
	KeyBtnSettings    = "btn.settings"
	KeyBtnHelp        = "btn.help"
	KeyBtnMainMenu    = "btn.main_menu"

	KeyBtnManageChats   = "btn.manage_chats"
	KeyBtnNotifications = "btn.notifications"
	KeyBtnAccessRights  = "btn.access_rights"
	KeyBtnConfiguration = "btn.configuration"
	KeyBtnRemoveChat    = "btn.remove_chat"

	KeyBtnTypeGroupChats  = "btn.type_group_chats"
	KeyBtnTypeDirectChats = "btn.type_direct_chats"
	KeyBtnTypeChatGroups  = "btn.type_chat_groups"

	KeyBtnConfirm = "btn.confirm"
	KeyBtnFinish  = "btn.finish"
	KeyBtnBack    = "btn.back"
	KeyBtnCancel  = "btn.cancel"

	KeyGlyphSelected   = "glyph.selected"
	KeyGlyphUnselected = "glyph.unselected"
	KeyGlyphPending    = "glyph.pending"
	KeyGlyphDone       = "glyph.done"

	KeyMsgMenu             = "msg.menu"
	KeyMsgSettings         = "msg.settings"
	KeyMsgEnterTask        = "msg.enter_task"
	KeyMsgChooseType       = "msg.choose_type"
	KeyMsgChooseRecipients = "msg.choose_recipients"
	KeyMsgEnterGroupName   = "msg.enter_group_name"
	KeyMsgChooseGroupChats = "msg.choose_group_chats"
	KeyMsgGroupExists      = "msg.group_exists"
	KeyMsgGroupCreated     = "msg.group_created"
	KeyMsgEmptySelection   = "msg.empty_selection"
	KeyMsgNoChats          = "msg.no_chats"
	KeyMsgNoGroups         = "msg.no_groups"
	KeyMsgUnknownCommand   = "msg.unknown_command"
	KeyMsgUnknownChoice    = "msg.unknown_choice"
	KeyMsgAccessDenied     = "msg.access_denied"
	KeyMsgInDevelopment    = "msg.in_development"
	KeyMsgTaskPrefix       = "msg.task_prefix"
	KeyMsgDispatchAck      = "msg.dispatch_ack"
	KeyMsgNoActiveTasks    = "msg.no_active_tasks"
	KeyMsgTasksListEnd     = "msg.tasks_list_end"
	KeyMsgHelp             = "msg.help"
	KeyMsgResponseAccepted = "msg.response_accepted"
	KeyMsgNoPendingTask    = "msg.no_pending_task"
	KeyMsgNotATask         = "msg.not_a_task"
	KeyMsgChatAdded        = "msg.chat_added"
	KeyMsgChatKnown        = "msg.chat_known"
	KeyMsgInternalError    = "msg.internal_error"
)

// buttonActions maps button keys to the action they trigger. Both the back
// and cancel buttons resolve to ActCancel: they are interchangeable exit
// sentinels in every wizard step.
var buttonActions = map[string]Action{
	KeyBtnCreateTask:  ActCreateTask,
	KeyBtnViewTasks:   ActViewTasks,
	KeyBtnViewChats:   ActViewChats,
	KeyBtnCreateGroup: ActCreateGroup,
	KeyBtnStatistics:  ActStatistics,
	KeyBtnSettings:    ActSettings,
	KeyBtnHelp:        ActHelp,
	KeyBtnMainMenu:    ActMainMenu,

	KeyBtnManageChats:   ActManageChats,
	KeyBtnNotifications: ActNotifications,
	KeyBtnAccessRights:  ActAccessRights,
	KeyBtnConfiguration: ActConfiguration,
	KeyBtnRemoveChat:    ActRemoveChat,

	KeyBtnTypeGroupChats:  ActTypeGroupChats,
	KeyBtnTypeDirectChats: ActTypeDirectChats,
	KeyBtnTypeChatGroups:  ActTypeChatGroups,

	KeyBtnConfirm: ActConfirm,
	KeyBtnFinish:  ActFinish,
	KeyBtnBack:    ActCancel,
	KeyBtnCancel:  ActCancel,
}

func defaultLabelTexts() map[string]string {
	return map[string]string{
		KeyBtnCreateTask:  "📝 Создать новое задание",
		KeyBtnViewTasks:   "📋 Просмотр активных заданий",
		KeyBtnViewChats:   "👥 Просмотр списка подключенных чатов",
		KeyBtnCreateGroup: "👥 Создать группу чатов",
		KeyBtnStatistics:  "📈 Общая статистика",
		KeyBtnSettings:    "⚙️ Настройки",
		KeyBtnHelp:        "❓ Помощь",
		KeyBtnMainMenu:    "🏠 Главное меню",

		KeyBtnManageChats:   "👥 Управление чатами",
		KeyBtnNotifications: "🔔 Уведомления",
		KeyBtnAccessRights:  "🔐 Права доступа",
		KeyBtnConfiguration: "⚙️ Конфигурация",
		KeyBtnRemoveChat:    "🗑 Удалить чат",

		KeyBtnTypeGroupChats:  "👥 Групповые чаты",
		KeyBtnTypeDirectChats: "👤 Личные чаты",
		KeyBtnTypeChatGroups:  "📁 Группы чатов",

		KeyBtnConfirm: "✅ Подтвердить",
		KeyBtnFinish:  "✅ Завершить",
		KeyBtnBack:    "🔙 Назад",
		KeyBtnCancel:  "🔙 Отмена",

		KeyGlyphSelected:   "✅",
		KeyGlyphUnselected: "⬜",
		KeyGlyphPending:    "⏳",
		KeyGlyphDone:       "✅",

		KeyMsgMenu:             "📋 Выберите действие:",
		KeyMsgSettings:         "⚙️ Настройки бота\nВыберите раздел настроек:",
		KeyMsgEnterTask:        "📝 Введите задание:",
		KeyMsgChooseType:       "Выберите тип получателей:",
		KeyMsgChooseRecipients: "Выберите получателей:",
		KeyMsgEnterGroupName:   "👥 Введите название для новой группы чатов:",
		KeyMsgChooseGroupChats: "👥 Выберите чаты для добавления в группу:",
		KeyMsgGroupExists:      "❌ Группа с таким названием уже существует.\nВведите другое название:",
		KeyMsgGroupCreated:     "✅ Группа успешно создана и наполнена!",
		KeyMsgEmptySelection:   "❌ Выберите хотя бы одного получателя",
		KeyMsgNoChats:          "📋 Нет подключенных чатов.\nДобавьте чаты с помощью команды /addchat в нужном чате",
		KeyMsgNoGroups:         "📁 Нет групп чатов.\nСначала создайте группу чатов",
		KeyMsgUnknownCommand:   "❓ Неизвестная команда. Используйте меню для навигации.",
		KeyMsgUnknownChoice:    "❌ Неверный выбор. Используйте кнопки для навигации.",
		KeyMsgAccessDenied:     "⛔ Доступ запрещен",
		KeyMsgInDevelopment:    "🚧 Раздел в разработке",
		KeyMsgTaskPrefix:       "📝 Новое задание:",
		KeyMsgDispatchAck:      "✅ Задание отправлено успешно!",
		KeyMsgNoActiveTasks:    "📋 Нет активных заданий",
		KeyMsgTasksListEnd:     "Конец списка активных заданий",
		KeyMsgHelp:             "Это бот для управления заданиями.",
		KeyMsgResponseAccepted: "✅ Ответ принят. Задание отмечено как выполненное.",
		KeyMsgNoPendingTask:    "❌ Не удалось найти активное задание для этого чата.",
		KeyMsgNotATask:         "❌ Ошибка: это сообщение не является заданием. Отвечайте на сообщение с заданием.",
		KeyMsgChatAdded:        "✅ Чат успешно добавлен в базу данных\nТеперь вы можете использовать этот чат для отправки заданий",
		KeyMsgChatKnown:        "✅ Этот чат уже добавлен в базу данных",
		KeyMsgInternalError:    "Произошла ошибка. Пожалуйста, попробуйте позже.",
	}
}

// Labels resolves keys to display text and incoming button text back to
// actions. Unknown override keys are ignored.
type Labels struct {
	texts  map[string]string
	byText map[string]Action
}

func DefaultLabels() *Labels {
	l := &Labels{texts: defaultLabelTexts()}
	l.reindex()
	return l
}

// Override replaces label texts by key and rebuilds the reverse index.
func (l *Labels) Override(overrides map[string]string) {
	for k, v := range overrides {
		if _, ok := l.texts[k]; ok && v != "" {
			l.texts[k] = v
		}
	}
	l.reindex()
}

func (l *Labels) reindex() {
	l.byText = make(map[string]Action, len(buttonActions))
	for key, act := range buttonActions {
		l.byText[l.texts[key]] = act
	}
}

// Get returns the display text for a key, or the key itself when unknown,
// which keeps a wiring mistake visible instead of blank.
func (l *Labels) Get(key string) string {
	if v, ok := l.texts[key]; ok {
		return v
	}
	return key
}

// ActionFor resolves incoming button text to its action.
func (l *Labels) ActionFor(text string) (Action, bool) {
	a, ok := l.byText[text]
	return a, ok
}
