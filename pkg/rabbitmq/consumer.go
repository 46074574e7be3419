package rabbitmq

import (
	"context"
	"errors"
	"study-pipeline/config"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

// Handler processes one delivery. Returning an error retries the delivery
// in place with exponential backoff; wrap it with backoff.Permanent to
// dead-letter it immediately.
type Handler[T any] func(ctx context.Context, msg amqp.Delivery, dependencies T) error

type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxTries: 5, InitialInterval: 500 * time.Millisecond, MaxInterval: 10 * time.Second}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    Handler[T]
	numWorkers int
	retry      RetryPolicy
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	topology := c.cfg.Topology
	if err := DeclareTopology(ctx, ch, c.cfg.Kind, topology); err != nil {
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", topology.Queue).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", topology.Queue).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", topology.Queue).
		Str("exchange", topology.Exchange).
		Str("routing_key", topology.RoutingKey).
		Int("workers", c.numWorkers).
		Msg("consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				c.deliver(ctx, workerId, msg, dependencies)
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

// deliver runs the handler with retries, then acks or nacks without requeue
// so the broker routes the message to the dead-letter queue. Deliveries that
// fail or have not started while the consumer is stopping are requeued.
func (c consumer[T]) deliver(ctx context.Context, workerId int, msg amqp.Delivery, dependencies T) {
	if ctx.Err() != nil {
		c.requeue(ctx, workerId, msg)
		return
	}

	permanent := false
	operation := func() (struct{}, error) {
		err := c.handler(ctx, msg, dependencies)
		var permanentErr *backoff.PermanentError
		if errors.As(err, &permanentErr) {
			permanent = true
		}
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialInterval
	bo.MaxInterval = c.retry.MaxInterval

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(c.retry.MaxTries))
	if err != nil {
		if ctx.Err() != nil && !permanent {
			c.requeue(ctx, workerId, msg)
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Msg("failed to handle message after all retries")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to send to DLQ")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
	}
}

func (c consumer[T]) requeue(ctx context.Context, workerId int, msg amqp.Delivery) {
	zerolog.Ctx(ctx).Warn().Int("worker_id", workerId).Msg("consumer stopping, requeueing message")
	if nackErr := msg.Nack(false, true); nackErr != nil {
		zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to requeue message")
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	retry RetryPolicy,
	handler Handler[T],
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if retry.MaxTries < 1 {
		retry.MaxTries = 1
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = DefaultRetryPolicy.MaxInterval
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
		retry:      retry,
	}
}
