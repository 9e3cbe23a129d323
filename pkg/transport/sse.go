package transport

import (
	"context"
	"fmt"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/util"
)

// SSEConnector connects to a server-sent-events endpoint and posts requests
// to the message endpoint the server announces.
type SSEConnector struct {
	Logger util.Logger
}

// Connect implements Connector.
func (c *SSEConnector) Connect(ctx context.Context, cfg ServerConfig) (Stream, error) {
	opts := []mcptransport.ClientOption{mcptransport.WithSSELogger(loggerOr(c.Logger))}
	if len(cfg.Headers) > 0 {
		opts = append(opts, mcptransport.WithHeaders(cfg.Headers))
	}

	s, err := mcptransport.NewSSE(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("sse %s: %w", cfg.URL, err)
	}
	if err := startWithTimeout(ctx, s, cfg.ConnectTimeout()); err != nil {
		return nil, fmt.Errorf("sse %s: %w", cfg.URL, err)
	}
	return s, nil
}
