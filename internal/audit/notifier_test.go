package audit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/derbyfab/derby-tickets/internal/mail"
	"github.com/derbyfab/derby-tickets/model"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*mail.Message
}

func (s *recordingSender) Send(message *mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, message)
	return nil
}

func (s *recordingSender) messages() []*mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*mail.Message(nil), s.sent...)
}

func TestNotifierSendsLockoutAlert(t *testing.T) {
	mgr, events, _, _, _ := newTestManager()
	sender := &recordingSender{}
	queue := mail.NewQueue(sender)
	queue.Start()

	notifier := NewNotifier(mgr, queue, "ops@derbyfab.com", 5*time.Minute)
	err := notifier.RecordEvent(context.Background(), &model.SecurityEvent{
		EventType:         model.EventTypeAccountLocked,
		Severity:          model.SeverityHigh,
		UsernameAttempted: "alice",
		IPAddress:         "10.0.0.1",
		Description:       "locked",
		Metadata:          map[string]any{"attempt_count": 5},
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	queue.Stop()

	if len(events.events) != 1 {
		t.Fatalf("events stored = %d, want 1", len(events.events))
	}
	sent := sender.messages()
	if len(sent) != 1 {
		t.Fatalf("alerts sent = %d, want 1", len(sent))
	}
	msg := sent[0]
	if msg.To[0] != "ops@derbyfab.com" {
		t.Errorf("alert recipient = %q", msg.To[0])
	}
	if !strings.Contains(msg.Subject, "alice") {
		t.Errorf("alert subject %q should name the identifier", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Failed attempts: 5") {
		t.Errorf("alert body missing attempt count:\n%s", msg.Body)
	}
}

func TestNotifierSendsCriticalAlert(t *testing.T) {
	mgr, _, _, _, _ := newTestManager()
	sender := &recordingSender{}
	queue := mail.NewQueue(sender)
	queue.Start()

	notifier := NewNotifier(mgr, queue, "ops@derbyfab.com", 5*time.Minute)
	err := notifier.RecordEvent(context.Background(), &model.SecurityEvent{
		EventType:         model.EventTypePotentialAttack,
		Severity:          model.SeverityCritical,
		UsernameAttempted: "10.0.0.1",
		IPAddress:         "10.0.0.1",
		Description:       "too many suspicious requests",
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	queue.Stop()

	sent := sender.messages()
	if len(sent) != 1 {
		t.Fatalf("alerts sent = %d, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Subject, model.EventTypePotentialAttack) {
		t.Errorf("alert subject = %q", sent[0].Subject)
	}
}

func TestNotifierWithoutAlertAddress(t *testing.T) {
	mgr, events, _, _, _ := newTestManager()
	sender := &recordingSender{}
	queue := mail.NewQueue(sender)
	queue.Start()

	notifier := NewNotifier(mgr, queue, "", 5*time.Minute)
	err := notifier.RecordEvent(context.Background(), &model.SecurityEvent{
		EventType:         model.EventTypeAccountLocked,
		Severity:          model.SeverityHigh,
		UsernameAttempted: "alice",
		IPAddress:         "10.0.0.1",
		Description:       "locked",
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	queue.Stop()

	if len(events.events) != 1 {
		t.Fatalf("events stored = %d, want 1", len(events.events))
	}
	if sent := sender.messages(); len(sent) != 0 {
		t.Fatalf("alerts sent = %d, want 0", len(sent))
	}
}
