package transport

import (
	"fmt"
	"strings"
)

// Kind names one of the four supported transports. The set is closed: a
// Dialer switches on it and a new kind needs a new Connector field.
type Kind string

const (
	KindPipe          Kind = "pipe"
	KindSSE           Kind = "sse"
	KindStreamingHTTP Kind = "streaming-http"
	KindSocket        Kind = "socket"
)

var kindAliases = map[string]Kind{
	"pipe":            KindPipe,
	"stdio":           KindPipe,
	"sse":             KindSSE,
	"streaming-http":  KindStreamingHTTP,
	"streaming_http":  KindStreamingHTTP,
	"streamable_http": KindStreamingHTTP,
	"streamable-http": KindStreamingHTTP,
	"http":            KindStreamingHTTP,
	"socket":          KindSocket,
	"websocket":       KindSocket,
	"ws":              KindSocket,
}

// ParseKind maps a configured transport name, including the historical
// spellings (stdio, streamable_http, websocket), to a Kind.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Kinds lists the canonical transport kinds.
func Kinds() []Kind {
	return []Kind{KindPipe, KindSSE, KindStreamingHTTP, KindSocket}
}
