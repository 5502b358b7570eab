package mail

import (
	"fmt"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"github.com/valyala/bytebufferpool"
)

// NewLockoutAlert builds the operator notification sent when an
// identifier crosses the lockout threshold.
func NewLockoutAlert(to []string, identifier, ip string, attempts int, lockoutTime time.Duration) *Message {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "Account lockout triggered at %s\n\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(buf, "Identifier:      %s\n", identifier)
	fmt.Fprintf(buf, "Source IP:       %s\n", ip)
	fmt.Fprintf(buf, "Failed attempts: %d\n", attempts)
	fmt.Fprintf(buf, "Lockout expires: %s\n\n", time.Now().Add(lockoutTime).Format(time.RFC1123))
	buf.WriteString("The identifier is blocked from logging in until the lockout expires or an administrator clears it.\n")

	message := NewMessage()
	message.To = to
	message.Subject = fmt.Sprintf("[security] Account lockout: %s", identifier)
	message.Body = buf.String()
	return message
}

// NewCriticalEventAlert notifies operators of an unresolved critical
// security event.
func NewCriticalEventAlert(to []string, event *model.SecurityEvent) *Message {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "Critical security event recorded at %s\n\n", event.Timestamp.Format(time.RFC1123))
	fmt.Fprintf(buf, "Event type: %s\n", event.EventType)
	fmt.Fprintf(buf, "Severity:   %s\n", event.Severity)
	if event.UsernameAttempted != "" {
		fmt.Fprintf(buf, "Username:   %s\n", event.UsernameAttempted)
	}
	fmt.Fprintf(buf, "Source IP:  %s\n\n", event.IPAddress)
	fmt.Fprintf(buf, "%s\n", event.Description)
	if event.Reason != "" {
		fmt.Fprintf(buf, "\nReason: %s\n", event.Reason)
	}

	message := NewMessage()
	message.To = to
	message.Subject = fmt.Sprintf("[security] %s", event.EventType)
	message.Body = buf.String()
	return message
}
