package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/mcphub/internal/metrics"
	"github.com/harun/mcphub/internal/tracing"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultRequestTimeout bounds each provider call.
	DefaultRequestTimeout = 120 * time.Second
)

// GatewayConfig configures a Gateway
type GatewayConfig struct {
	Provider Provider
	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retrying; a negative value selects DefaultMaxRetries.
	MaxRetries int
	Timeout    time.Duration
	// BaseDelay is the first backoff delay; it doubles on every retry.
	BaseDelay time.Duration
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Gateway wraps a Provider with retries, a per-call timeout and error
// folding. It never returns an error: failures come back as a text part.
type Gateway struct {
	provider   Provider
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewGateway creates a new inference gateway
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Gateway{
		provider:   cfg.Provider,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		baseDelay:  cfg.BaseDelay,
		logger:     cfg.Logger.With().Str("component", "gateway").Str("provider", cfg.Provider.Name()).Logger(),
		metrics:    cfg.Metrics,
	}, nil
}

// Complete sends req to the provider. On failure the response carries the
// request messages and a single text part describing the error.
func (g *Gateway) Complete(ctx context.Context, req Request) *Response {
	resp, err := g.completeWithRetry(ctx, req)
	if err != nil {
		logger := tracing.LoggerFromContext(ctx, g.logger)
		logger.Error().Err(err).Msg("Inference request failed")
		return &Response{
			Messages: copyMessages(req.Messages),
			Parts:    []Part{TextPart("Error calling the AI service: " + err.Error())},
		}
	}
	if resp.Messages == nil {
		resp.Messages = copyMessages(req.Messages)
	}
	return resp
}

func (g *Gateway) completeWithRetry(ctx context.Context, req Request) (*Response, error) {
	logger := tracing.LoggerFromContext(ctx, g.logger)
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		response, err := g.call(ctx, req)
		if err == nil {
			return response, nil
		}

		lastErr = err

		// Don't retry on permanent errors or a cancelled turn
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryableError(err) {
			return nil, err
		}

		// Last attempt - don't wait
		if attempt == g.maxRetries {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := g.baseDelay * time.Duration(1<<attempt)
		logger.Info().
			Err(err).
			Int("attempt", attempt+1).
			Int64("delayMs", delay.Milliseconds()).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", g.maxRetries, lastErr)
}

// call makes a single provider call under the per-call timeout
func (g *Gateway) call(ctx context.Context, req Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.Complete(callCtx, req)
	if err == nil && resp == nil {
		err = fmt.Errorf("provider returned no response")
	}
	g.metrics.GatewayRequest(g.provider.Name(), err == nil, time.Since(start))
	return resp, err
}
