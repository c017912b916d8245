package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain is a Provider that falls back through a list of providers in order.
// The bot uses it to keep speaking when the configured voice starts failing:
// a request goes to the first provider, and only moves down the list when
// that provider errors.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a fallback chain. At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		providers: providers,
		logger:    slog.Default().With("component", "tts.chain"),
	}, nil
}

// Synthesize tries each provider in order and returns the first success.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var result *AudioResult
	err := c.attempt(ctx, "synthesize", func(p Provider) error {
		r, err := p.Synthesize(ctx, text)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// Stream tries each provider in order and returns the first stream opened.
func (c *Chain) Stream(ctx context.Context, text string) (AudioStream, error) {
	var stream AudioStream
	err := c.attempt(ctx, "stream", func(p Provider) error {
		s, err := p.Stream(ctx, text)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	return stream, err
}

// attempt runs op against each provider until one succeeds. Context
// cancellation stops the walk immediately.
func (c *Chain) attempt(ctx context.Context, op string, fn func(Provider) error) error {
	var failures []error

	for i, p := range c.providers {
		err := fn(p)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider took over",
					"op", op,
					"provider_index", i,
				)
			}
			return nil
		}

		failures = append(failures, err)
		c.logger.Warn("provider failed",
			"op", op,
			"provider_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return &ChainError{Errors: failures}
}

// Health reports an error only when every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
			continue
		}
		healthy++
	}

	if healthy == 0 {
		return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
	}
	return nil
}

// Close closes every provider, returning the last error seen.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChainError aggregates the per-provider failures of one request.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("tts chain: all %d providers failed, last error: %v",
			len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Unwrap returns the last provider error.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
