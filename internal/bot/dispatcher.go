package bot

import (
	"context"

	"taskcast/internal/storage"
	logx "taskcast/pkg/logx"
)

// Notifier delivers one message to one chat. The telegram notifier
// satisfies it.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// DeliveryReport summarizes one fan-out.
type DeliveryReport struct {
	TaskID    int64
	Attempted int
	Delivered int
}

// Dispatcher persists a finalized task and fans the task text out to every
// destination chat. Group recipients are stored as one selection unit per
// group and expanded to member chats for delivery only.
type Dispatcher struct {
	store    Repository
	notifier Notifier
	labels   *Labels
	log      logx.Logger
}

func NewDispatcher(store Repository, notifier Notifier, labels *Labels, log logx.Logger) *Dispatcher {
	if labels == nil {
		labels = DefaultLabels()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{store: store, notifier: notifier, labels: labels, log: log}
}

// Dispatch writes the task and all recipient rows in one transaction, then
// delivers to each destination chat in selection order. A failed delivery
// is logged and the fan-out continues; once started it runs over the full
// recipient list.
func (d *Dispatcher) Dispatch(ctx context.Context, taskText string, createdBy int64, rtype RecipientType, selected []Candidate) (DeliveryReport, error) {
	rows := make([]storage.RecipientRow, 0, len(selected))
	for _, cand := range selected {
		if rtype == RecipientsChatGroups {
			rows = append(rows, storage.RecipientRow{GroupID: cand.ID})
		} else {
			rows = append(rows, storage.RecipientRow{ChatID: cand.ID})
		}
	}

	taskID, err := d.store.CreateTaskWithRecipients(ctx, taskText, createdBy, rows)
	if err != nil {
		return DeliveryReport{}, err
	}

	report := DeliveryReport{TaskID: taskID}
	text := d.labels.Get(KeyMsgTaskPrefix) + " " + taskText

	for _, cand := range selected {
		if rtype != RecipientsChatGroups {
			d.deliver(ctx, taskID, cand.ID, text, &report)
			continue
		}
		members, err := d.store.ListGroupChats(ctx, cand.ID)
		if err != nil {
			d.log.Error("group expansion failed",
				logx.Int64("task_id", taskID),
				logx.Int64("group_id", cand.ID),
				logx.Err(err))
			continue
		}
		for _, m := range members {
			d.deliver(ctx, taskID, m.ChatID, text, &report)
		}
	}

	d.log.Info("task dispatched",
		logx.Int64("task_id", taskID),
		logx.String("recipient_type", string(rtype)),
		logx.Int("attempted", report.Attempted),
		logx.Int("delivered", report.Delivered))
	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, taskID, chatID int64, text string, report *DeliveryReport) {
	report.Attempted++
	if err := d.notifier.Send(ctx, chatID, text); err != nil {
		d.log.Warn("task delivery failed",
			logx.Int64("task_id", taskID),
			logx.Int64("chat_id", chatID),
			logx.Err(err))
		return
	}
	report.Delivered++
}
