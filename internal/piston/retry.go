package piston

import (
	"context"
	"math"
	"math/rand"
	"time"

	"pkt.systems/pslog"
)

// RetryConfig shapes exponential backoff for idempotent requests. Zero
// MaxRetries disables retries.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   3 * time.Second,
		Multiplier: 2.0,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	return c
}

func withRetry(ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) error) error {
	log := pslog.Ctx(ctx)
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return contextError(op, err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				log.Debug("piston retry ok", "op", op, "attempt", attempt+1)
			}
			return nil
		}
		if !retryable(lastErr) || attempt == cfg.MaxRetries {
			break
		}
		delay := backoff(attempt, cfg)
		log.Debug("piston retry scheduled", "op", op, "attempt", attempt+1, "delay", delay, "err", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}
	return lastErr
}

// backoff returns base*multiplier^attempt capped at MaxDelay, jittered to
// 80-120%.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	delay *= 0.8 + rand.Float64()*0.4
	return time.Duration(delay)
}
