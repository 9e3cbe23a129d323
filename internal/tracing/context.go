package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TurnIDKey is the context key for the id of one conversation turn
	TurnIDKey ContextKey = "turn_id"
	// SessionIDKey is the context key for the context-store session id
	SessionIDKey ContextKey = "session_id"
)

// NewTurnID generates a new turn ID
func NewTurnID() string {
	return uuid.New().String()
}

// WithTurnID adds a turn ID to the context
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, TurnIDKey, turnID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetTurnID retrieves the turn ID from the context
func GetTurnID(ctx context.Context) string {
	if id, ok := ctx.Value(TurnIDKey).(string); ok {
		return id
	}
	return ""
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// NewTurnContext starts a turn: it stores a fresh turn ID and the given
// session ID, keeping a turn ID that is already present.
func NewTurnContext(ctx context.Context, sessionID string) context.Context {
	if GetTurnID(ctx) == "" {
		ctx = WithTurnID(ctx, NewTurnID())
	}
	if sessionID != "" {
		ctx = WithSessionID(ctx, sessionID)
	}
	return ctx
}

// LoggerFromContext returns baseLogger with the turn and session IDs found
// in ctx attached as fields.
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return baseLogger
	}
	lc := baseLogger.With()
	if id := GetTurnID(ctx); id != "" {
		lc = lc.Str("turn_id", id)
	}
	if id := GetSessionID(ctx); id != "" {
		lc = lc.Str("session_id", id)
	}
	return lc.Logger()
}
