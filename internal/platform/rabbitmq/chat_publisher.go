package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"financegpt/internal/model"
)

// ChatPublisher hands chat rows to the persist queue instead of writing them
// inline.
type ChatPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewChatPublisher(conn *amqp.Connection, queueName string) *ChatPublisher {
	return &ChatPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ChatPublisher) Publish(ctx context.Context, chat model.Chat) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("marshal chat payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish chat failed: %w", err)
	}
	return nil
}
