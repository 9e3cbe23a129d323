package session

import (
	"errors"
	"fmt"
)

// Stage names where a server can fail.
const (
	StageConnect   = "connect"
	StageHandshake = "handshake"
	StageCatalog   = "catalog"
)

var (
	ErrConnection    = errors.New("connection failed")
	ErrHandshake     = errors.New("handshake failed")
	ErrCatalogFetch  = errors.New("catalog fetch failed")
	ErrToolNotFound  = errors.New("tool not found")
	ErrInvalidInput  = errors.New("invalid tool input")
	ErrToolExecution = errors.New("tool execution failed")
	ErrNotConnected  = errors.New("server not connected")
)

// ServerError reports a failure of one server at one stage.
type ServerError struct {
	Server string
	Stage  string
	Err    error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server %q: %s: %v", e.Server, e.Stage, e.Err)
}

// Unwrap exposes both the stage sentinel and the underlying cause.
func (e *ServerError) Unwrap() []error {
	return []error{stageSentinel(e.Stage), e.Err}
}

func stageSentinel(stage string) error {
	switch stage {
	case StageHandshake:
		return ErrHandshake
	case StageCatalog:
		return ErrCatalogFetch
	default:
		return ErrConnection
	}
}

// ToolError reports a failed tool call.
type ToolError struct {
	Tool   string
	Server string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q on %q: %v", e.Tool, e.Server, e.Err)
}

func (e *ToolError) Unwrap() []error {
	return []error{ErrToolExecution, e.Err}
}
