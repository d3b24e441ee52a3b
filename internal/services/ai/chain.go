package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// FallbackChain tries its providers in order and returns the first success.
// Each attempt gets its own timeout; there are no retries beyond moving to the next provider.
type FallbackChain struct {
	providers []Provider
	timeout   time.Duration
	logger    *zap.Logger
}

// NewFallbackChain builds a chain. A non-positive timeout falls back to DefaultTimeout.
func NewFallbackChain(providers []Provider, timeout time.Duration, logger *zap.Logger) *FallbackChain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackChain{providers: providers, timeout: timeout, logger: logger}
}

// Providers returns the provider names in the order they are tried
func (c *FallbackChain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Complete runs the messages through the chain
func (c *FallbackChain) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if len(c.providers) == 0 {
		return nil, &UpstreamProviderError{Provider: "none", Err: ErrNoProviders}
	}

	var lastErr error
	var lastProvider string
	for i, p := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		completion, err := p.Complete(attemptCtx, messages)
		cancel()
		if err == nil {
			return completion, nil
		}

		lastErr = err
		lastProvider = p.Name()

		if ctx.Err() != nil {
			break
		}

		if i < len(c.providers)-1 {
			c.logger.Warn("ai_provider_failed_falling_back",
				zap.String("provider", p.Name()),
				zap.String("next_provider", c.providers[i+1].Name()),
				zap.Bool("rate_limited", IsRateLimitError(err)),
				zap.Bool("quota_exceeded", IsQuotaError(err)),
				zap.Bool("timed_out", errors.Is(err, context.DeadlineExceeded)),
				zap.Error(err),
			)
		}
	}

	return nil, &UpstreamProviderError{Provider: lastProvider, Err: lastErr}
}

// GenerateCoachingResponse implements Gateway
func (c *FallbackChain) GenerateCoachingResponse(ctx context.Context, instruction string, cc CoachingContext) (*Completion, error) {
	return c.Complete(ctx, BuildMessages(instruction, cc))
}
