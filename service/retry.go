package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NoRetry makes a single attempt.
var NoRetry = RetryConfig{MaxTries: 1}

type temporary interface {
	Temporary() bool
}

// IsTransient reports failures that may succeed on a second attempt:
// transport errors, timeouts, 429 and 5xx responses.
func IsTransient(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

func withRetry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	operation := func() (T, error) {
		v, err := op()
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	tries := cfg.MaxTries
	if tries < 1 {
		tries = 1
	}

	bo := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		bo.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		bo.MaxInterval = cfg.MaxInterval
	}

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(tries))
}
