package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Dispatch calls a tool from the most recent catalog and returns its output
// as text. A result flagged isError is reported as a *ToolError.
func (m *Manager) Dispatch(ctx context.Context, name string, input map[string]any) (string, error) {
	m.mu.Lock()
	desc, ok := m.catalog.Lookup(name)
	var s *Session
	if ok {
		s = m.sessions[desc.Server]
	}
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if s == nil {
		return "", &ToolError{Tool: name, Server: desc.Server, Err: ErrNotConnected}
	}
	if err := desc.Validate(input); err != nil {
		m.metrics.ToolCall(name, false, 0)
		return "", err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = input

	start := time.Now()
	res, err := s.client.CallTool(ctx, req)
	elapsed := time.Since(start)

	log := m.logger.With().Str("server", s.Name).Str("tool", name).Dur("duration", elapsed).Logger()
	if err != nil {
		m.metrics.ToolCall(name, false, elapsed)
		log.Warn().Err(err).Msg("Tool call failed")
		return "", &ToolError{Tool: name, Server: s.Name, Err: err}
	}

	text := ResultText(res)
	if res.IsError {
		m.metrics.ToolCall(name, false, elapsed)
		log.Warn().Str("result", truncate(text, 200)).Msg("Tool reported an error")
		if text == "" {
			text = "tool returned an error result"
		}
		return "", &ToolError{Tool: name, Server: s.Name, Err: errors.New(text)}
	}

	m.metrics.ToolCall(name, true, elapsed)
	log.Debug().Msg("Tool call succeeded")
	return text, nil
}

// ResultText flattens a tool result into one string. Text parts are joined
// with newlines; other content parts are JSON encoded. Structured content is
// used only when there is no content at all.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				parts = append(parts, fmt.Sprintf("%v", v))
				continue
			}
			parts = append(parts, string(b))
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if b, err := json.Marshal(res.StructuredContent); err == nil {
			return string(b)
		}
	}
	return strings.Join(parts, "\n")
}

// truncate cuts s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
