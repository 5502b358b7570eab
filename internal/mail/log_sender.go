package mail

import "log/slog"

// LogMailSender writes messages to the log instead of delivering them.
// Used in development and test deployments without an SMTP relay.
type LogMailSender struct{}

func (LogMailSender) Send(message *Message) error {
	slog.Info("Mail delivery (log backend)",
		"id", message.ID,
		"to", message.To,
		"subject", message.Subject,
		"body", message.Body)
	return nil
}
