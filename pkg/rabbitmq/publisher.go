package rabbitmq

import (
	"context"
	"encoding/json"
	amqp "github.com/rabbitmq/amqp091-go"
	"sync"
	"time"
	"video-chapters/config"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type publisher struct {
	conn    *amqp.Connection
	cfg     *config.RabbitMQ
	binding Binding

	mu       sync.Mutex
	ch       *amqp.Channel
	declared bool
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ, binding Binding) Publisher {
	return &publisher{
		conn:    conn,
		cfg:     cfg,
		binding: binding,
	}
}

// channel reopens the channel after the broker closed it.
func (p *publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	p.declared = false
	return ch, nil
}

func (p *publisher) Publish(ctx context.Context, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if !p.declared {
		if err := declare(ch, p.cfg, p.binding); err != nil {
			return err
		}
		p.declared = true
	}

	return ch.PublishWithContext(ctx, p.binding.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}
