package audit

import (
	"context"
	"time"

	"github.com/derbyfab/derby-tickets/internal/mail"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/spf13/cast"
)

// Notifier wraps the audit manager's event recording and fans alert
// mail out to operators for lockouts and critical events. Delivery is
// fire-and-forget through the mail queue.
type Notifier struct {
	inner       *Manager
	queue       *mail.Queue
	alertAddr   string
	lockoutTime time.Duration
}

func NewNotifier(inner *Manager, queue *mail.Queue, alertAddr string, lockoutTime time.Duration) *Notifier {
	return &Notifier{
		inner:       inner,
		queue:       queue,
		alertAddr:   alertAddr,
		lockoutTime: lockoutTime,
	}
}

func (n *Notifier) RecordEvent(ctx context.Context, event *model.SecurityEvent) error {
	if err := n.inner.RecordEvent(ctx, event); err != nil {
		return err
	}
	if n.alertAddr == "" || n.queue == nil {
		return nil
	}
	switch {
	case event.EventType == model.EventTypeAccountLocked:
		attempts := cast.ToInt(event.Metadata["attempt_count"])
		n.queue.Enqueue(mail.NewLockoutAlert(
			[]string{n.alertAddr}, event.UsernameAttempted, event.IPAddress, attempts, n.lockoutTime))
	case event.IsCritical():
		n.queue.Enqueue(mail.NewCriticalEventAlert([]string{n.alertAddr}, event))
	}
	return nil
}
