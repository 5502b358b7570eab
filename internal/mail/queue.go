package mail

import (
	"log/slog"
	"sync"
	"time"

	"github.com/derbyfab/derby-tickets/params"
)

// Queue decouples mail delivery from request handling: producers
// enqueue without blocking and a single consumer drains sequentially
// with a fixed delay between sends to respect provider rate limits.
type Queue struct {
	sender   MailSender
	messages chan *Message
	delay    time.Duration
	stop     chan struct{}
	done     sync.WaitGroup
	once     sync.Once
}

func NewQueue(sender MailSender) *Queue {
	return &Queue{
		sender:   sender,
		messages: make(chan *Message, params.MailQueueSize),
		delay:    params.MailSendDelay,
		stop:     make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (q *Queue) Start() {
	q.done.Add(1)
	go q.run()
}

// Enqueue hands the message to the background consumer. It never
// blocks: when the queue is full the message is dropped and logged.
func (q *Queue) Enqueue(message *Message) {
	select {
	case q.messages <- message:
	default:
		slog.Error("Mail queue full, dropping message", "id", message.ID, "subject", message.Subject, "to", message.To)
	}
}

// Stop shuts the consumer down, draining messages already queued until
// the stop wait elapses.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stop) })

	waited := make(chan struct{})
	go func() {
		q.done.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(params.MailWorkerStopWait):
		slog.Warn("Mail queue stop wait elapsed, abandoning remaining messages", "pending", len(q.messages))
	}
}

func (q *Queue) run() {
	defer q.done.Done()
	for {
		select {
		case <-q.stop:
			// drain what is already queued before exiting
			for {
				select {
				case message := <-q.messages:
					q.send(message)
				default:
					return
				}
			}
		case message := <-q.messages:
			q.send(message)
			select {
			case <-time.After(q.delay):
			case <-q.stop:
			}
		}
	}
}

func (q *Queue) send(message *Message) {
	if err := q.sender.Send(message); err != nil {
		slog.Error("Failed to send mail", "id", message.ID, "subject", message.Subject, "to", message.To, "error", err)
	}
}
