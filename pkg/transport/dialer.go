package transport

import (
	"context"
	"fmt"
	"time"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/util"
	"github.com/rs/zerolog"

	"github.com/harun/mcphub/internal/logger"
)

// Stream is the single duplex message channel every connector yields.
type Stream = mcptransport.Interface

// Connector opens a started Stream for a server config. ctx bounds the
// lifetime of the stream, not just the connection attempt.
type Connector interface {
	Connect(ctx context.Context, cfg ServerConfig) (Stream, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, cfg ServerConfig) (Stream, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, cfg ServerConfig) (Stream, error) {
	return f(ctx, cfg)
}

// Dialer dispatches a ServerConfig to the connector for its kind.
type Dialer struct {
	Pipe          Connector
	SSE           Connector
	StreamingHTTP Connector
	Socket        Connector

	logger zerolog.Logger
}

// NewDialer returns a Dialer wired with the built-in connectors.
func NewDialer(log zerolog.Logger) *Dialer {
	ml := logger.MCP(log)
	return &Dialer{
		Pipe:          &PipeConnector{Logger: ml},
		SSE:           &SSEConnector{Logger: ml},
		StreamingHTTP: &StreamingHTTPConnector{Logger: ml},
		Socket:        &SocketConnector{Logger: ml},
		logger:        log.With().Str("component", "dialer").Logger(),
	}
}

// Dial opens a stream for cfg using the connector matching its kind.
func (d *Dialer) Dial(ctx context.Context, cfg ServerConfig) (Stream, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}

	var c Connector
	switch kind {
	case KindPipe:
		c = d.Pipe
	case KindSSE:
		c = d.SSE
	case KindStreamingHTTP:
		c = d.StreamingHTTP
	case KindSocket:
		c = d.Socket
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no connector for %s", ErrUnknownKind, kind)
	}

	d.logger.Debug().
		Str("server", cfg.Name).
		Str("transport", string(kind)).
		Dur("timeout", cfg.ConnectTimeout()).
		Msg("Dialing server")

	s, err := c.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("server %q: %w", cfg.Name, ErrInvalidStream)
	}
	return s, nil
}

// startWithTimeout starts s under the long-lived ctx but gives up after
// timeout. mcp-go transports bind their read loops and child processes to the
// ctx passed to Start, so the deadline cannot simply be put on ctx.
func startWithTimeout(ctx context.Context, s Stream, timeout time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		if err != nil {
			_ = s.Close()
		}
		return err
	case <-timer.C:
		_ = s.Close()
		return fmt.Errorf("%w after %s", ErrConnectTimeout, timeout)
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	}
}

func loggerOr(l util.Logger) util.Logger {
	if l == nil {
		return util.DefaultLogger()
	}
	return l
}
