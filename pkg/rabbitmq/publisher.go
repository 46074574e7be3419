package rabbitmq

import (
	"context"
	"encoding/json"
	"study-pipeline/config"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	Publish(ctx context.Context, message any) error
}

type publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ

	mu       sync.Mutex
	declared bool
}

// Publish sends message as a persistent JSON delivery on the configured
// exchange and routing key.
func (p *publisher) Publish(ctx context.Context, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := p.declare(ctx, ch); err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		p.cfg.Topology.Exchange,
		p.cfg.Topology.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// declare sets up the topology on first use; a failed attempt is retried
// by the next Publish.
func (p *publisher) declare(ctx context.Context, ch topologyChannel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared {
		return nil
	}
	if err := DeclareTopology(ctx, ch, p.cfg.Kind, p.cfg.Topology); err != nil {
		return err
	}
	p.declared = true
	return nil
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) Publisher {
	return &publisher{conn: conn, cfg: cfg}
}
