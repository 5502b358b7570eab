package mail

import "github.com/google/uuid"

var defaultFromAddr string

func SetDefaultFromAddress(from string) {
	defaultFromAddr = from
}

type Message struct {
	ID          string
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	IsHTML      bool
	Embeds      map[string]string
	Attachments []string
}

// NewMessage allocates a message with a delivery ID for log correlation.
func NewMessage() *Message {
	return &Message{
		ID:   uuid.NewString(),
		From: defaultFromAddr,
	}
}

type MailSender interface {
	Send(message *Message) error
}
