package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/queue"
)

// ContactNotifier is told about every accepted contact message.  Failures
// never reach the visitor who submitted the form.
type ContactNotifier interface {
	ContactReceived(ctx context.Context, c model.ContactMessage)
}

// NopNotifier drops notifications.  Used when the queue is disabled.
type NopNotifier struct{}

func (NopNotifier) ContactReceived(context.Context, model.ContactMessage) {}

// QueueNotifier publishes a ContactReceivedEvent to RabbitMQ.  Publishing
// happens in a goroutine detached from the request; errors are logged.
type QueueNotifier struct {
	URL     string
	Queue   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewQueueNotifier(url, queueName string, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{URL: url, Queue: queueName, Timeout: 5 * time.Second, Logger: logger}
}

func (n *QueueNotifier) ContactReceived(_ context.Context, c model.ContactMessage) {
	ev := queue.ContactReceivedEvent{
		ContactID:  c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Preview:    queue.Preview(c.Message),
		ReceivedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.Subject != nil {
		ev.Subject = *c.Subject
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.Timeout)
		defer cancel()
		if err := n.Publish(ctx, ev); err != nil {
			n.Logger.Warn("contact notification not published", "contact_id", ev.ContactID, "err", err)
		}
	}()
}

// Publish sends ev as a persistent JSON message to the contact queue,
// declaring the queue first (idempotent).
func (n *QueueNotifier) Publish(ctx context.Context, ev queue.ContactReceivedEvent) error {
	conn, err := amqp.Dial(n.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(n.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", n.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
