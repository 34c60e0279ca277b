package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/providentiaww/jira-connector/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// IssueBatch is the message payload published after a sync: one complete
// issue snapshot for one project. Consumers rely on RunID to deduplicate
// redeliveries.
type IssueBatch struct {
	RunID      string         `json:"run_id"`
	ProjectKey string         `json:"project_key"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Issues     []models.Issue `json:"issues"`
}

// Publisher pushes issue batches onto a durable queue for downstream
// consumers.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewPublisher connects to the broker and declares the queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("export: connecting to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("export: opening channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("export: declaring queue %s: %w", queue, err)
	}

	return &Publisher{conn: conn, channel: channel, queue: queue}, nil
}

// PublishBatch sends one batch as a persistent JSON message.
func (p *Publisher) PublishBatch(ctx context.Context, batch IssueBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("export: encoding batch %s: %w", batch.RunID, err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("export: publishing batch %s: %w", batch.RunID, err)
	}
	return nil
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
