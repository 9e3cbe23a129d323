package transport

import (
	"context"
	"fmt"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/util"
)

// StreamingHTTPConnector connects to a streamable HTTP endpoint. The session
// id the transport negotiates is tracked by mcp-go and never read here.
type StreamingHTTPConnector struct {
	Logger util.Logger
}

// Connect implements Connector.
func (c *StreamingHTTPConnector) Connect(ctx context.Context, cfg ServerConfig) (Stream, error) {
	opts := []mcptransport.StreamableHTTPCOption{
		mcptransport.WithHTTPLogger(loggerOr(c.Logger)),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, mcptransport.WithHTTPHeaders(cfg.Headers))
	}

	s, err := mcptransport.NewStreamableHTTP(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("streaming-http %s: %w", cfg.URL, err)
	}
	if err := startWithTimeout(ctx, s, cfg.ConnectTimeout()); err != nil {
		return nil, fmt.Errorf("streaming-http %s: %w", cfg.URL, err)
	}
	return s, nil
}
