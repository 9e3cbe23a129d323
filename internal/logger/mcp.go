package logger

import (
	"fmt"

	"github.com/mark3labs/mcp-go/util"
	"github.com/rs/zerolog"
)

// MCP adapts a zerolog logger to the printf-style logger mcp-go transports
// accept, so transport diagnostics land in the same sink.
func MCP(l zerolog.Logger) util.Logger {
	return mcpLogger{l: l.With().Str("component", "mcp-transport").Logger()}
}

type mcpLogger struct {
	l zerolog.Logger
}

func (m mcpLogger) Infof(format string, v ...any) {
	m.l.Debug().Msg(fmt.Sprintf(format, v...))
}

func (m mcpLogger) Errorf(format string, v ...any) {
	m.l.Warn().Msg(fmt.Sprintf(format, v...))
}
