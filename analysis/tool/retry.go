package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

// RetryConfig bounds the gateway's backoff on transient failures.
// Retrying lives here and nowhere else; the orchestrator never retries.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// withRetry runs fn, retrying only failures marked ErrUnavailable.
// Validation and configuration errors surface immediately.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() (any, error)) (any, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if delay > cfg.MaxDelay && cfg.MaxDelay > 0 {
				delay = cfg.MaxDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}

		payload, err := fn()
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, contractx.ErrUnavailable) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}
