package transport

import (
	"context"
	"fmt"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/util"
)

// PipeConnector spawns a local server process and talks JSON-RPC over its
// stdin and stdout.
type PipeConnector struct {
	Logger util.Logger
	// CommandFunc overrides process construction, mainly for tests.
	CommandFunc mcptransport.CommandFunc
}

// Connect implements Connector.
func (p *PipeConnector) Connect(ctx context.Context, cfg ServerConfig) (Stream, error) {
	command, args := cfg.PipeCommand()
	if command == "" {
		return nil, fmt.Errorf("server %q: %w: empty command", cfg.Name, ErrInvalidConfig)
	}

	opts := []mcptransport.StdioOption{mcptransport.WithCommandLogger(loggerOr(p.Logger))}
	if p.CommandFunc != nil {
		opts = append(opts, mcptransport.WithCommandFunc(p.CommandFunc))
	}

	s := mcptransport.NewStdioWithOptions(command, cfg.EnvList(), args, opts...)
	if err := startWithTimeout(ctx, s, cfg.ConnectTimeout()); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	return s, nil
}
