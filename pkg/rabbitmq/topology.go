package rabbitmq

import (
	"context"
	"study-pipeline/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// topologyChannel is the part of *amqp.Channel used to declare topology.
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareTopology declares the work exchange and queue and, when configured,
// the dead-letter exchange and queue the work queue rejects into.
// Declarations are idempotent, so publisher and consumer both call it.
func DeclareTopology(ctx context.Context, ch topologyChannel, kind string, t config.Topology) error {
	if kind == "" {
		kind = amqp.ExchangeTopic
	}

	err := ch.ExchangeDeclare(t.Exchange, kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", t.Exchange).Msg("failed to declare exchange")
		return err
	}

	var args amqp.Table
	if t.DeadLetterExchange != "" {
		err = ch.ExchangeDeclare(t.DeadLetterExchange, kind, true, false, false, false, nil)
		if err != nil {
			zerolog.Ctx(ctx).Error().Str("exchange", t.DeadLetterExchange).Msg("failed to declare dlx")
			return err
		}

		dlq, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil)
		if err != nil {
			zerolog.Ctx(ctx).Error().Str("queue", t.DeadLetterQueue).Msg("failed to declare dlq")
			return err
		}

		err = ch.QueueBind(dlq.Name, t.DeadLetterRoutingKey, t.DeadLetterExchange, false, nil)
		if err != nil {
			zerolog.Ctx(ctx).Error().Str("queue", t.DeadLetterQueue).Msg("failed to bind dlq")
			return err
		}

		args = amqp.Table{
			"x-dead-letter-exchange":    t.DeadLetterExchange,
			"x-dead-letter-routing-key": t.DeadLetterRoutingKey,
		}
	}

	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, args)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", t.Queue).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", t.Queue).Msg("failed to bind queue")
		return err
	}
	return nil
}
