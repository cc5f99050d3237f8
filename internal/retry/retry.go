// Package retry replays transient failures with capped exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// JitterFactor spreads each delay by +/- the given fraction.
	JitterFactor float64
}

// TxConfig suits aborted transactions: short waits, few attempts.
func TxConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2,
		JitterFactor: 0.2,
	}
}

// RemoteConfig suits network calls to rate limited upstreams.
func RemoteConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. Waiting honors ctx; the last fn error is returned.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func() error) error {
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		lastErr = fn()
		if lastErr != nil && retryable != nil && !retryable(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	},
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxTries(uint(max(cfg.MaxRetries, 0)+1)),
	)
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

func (c Config) backOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: max(c.JitterFactor, 0),
		Multiplier:          max(c.Multiplier, 1),
		MaxInterval:         c.MaxDelay,
	}
}
