package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStream is a Stream whose Start blocks until release is closed.
type stubStream struct {
	release chan struct{}
	closed  chan struct{}
}

func newStubStream() *stubStream {
	return &stubStream{release: make(chan struct{}), closed: make(chan struct{})}
}

func (s *stubStream) Start(ctx context.Context) error {
	select {
	case <-s.release:
		return nil
	case <-s.closed:
		return errors.New("closed")
	}
}

func (s *stubStream) SendRequest(context.Context, mcptransport.JSONRPCRequest) (*mcptransport.JSONRPCResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStream) SendNotification(context.Context, mcp.JSONRPCNotification) error { return nil }

func (s *stubStream) SetNotificationHandler(func(mcp.JSONRPCNotification)) {}

func (s *stubStream) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

func (s *stubStream) GetSessionId() string { return "" }

func TestDialerDispatch(t *testing.T) {
	var got []Kind
	record := func(k Kind) Connector {
		return ConnectorFunc(func(ctx context.Context, cfg ServerConfig) (Stream, error) {
			got = append(got, k)
			s := newStubStream()
			close(s.release)
			return s, nil
		})
	}

	d := NewDialer(zerolog.Nop())
	d.Pipe = record(KindPipe)
	d.SSE = record(KindSSE)
	d.StreamingHTTP = record(KindStreamingHTTP)
	d.Socket = record(KindSocket)

	for _, tr := range []string{"stdio", "sse", "streamable_http", "websocket"} {
		_, err := d.Dial(context.Background(), ServerConfig{Name: tr, Transport: tr})
		require.NoError(t, err)
	}
	assert.Equal(t, Kinds(), got)
}

func TestDialerErrors(t *testing.T) {
	t.Run("nil stream is a config error", func(t *testing.T) {
		d := NewDialer(zerolog.Nop())
		d.SSE = ConnectorFunc(func(context.Context, ServerConfig) (Stream, error) { return nil, nil })

		_, err := d.Dial(context.Background(), ServerConfig{Name: "broken", Transport: "sse"})
		assert.ErrorIs(t, err, ErrInvalidStream)
	})

	t.Run("unknown kind", func(t *testing.T) {
		d := NewDialer(zerolog.Nop())
		_, err := d.Dial(context.Background(), ServerConfig{Name: "x", Transport: "fax"})
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("missing connector", func(t *testing.T) {
		d := NewDialer(zerolog.Nop())
		d.Socket = nil
		_, err := d.Dial(context.Background(), ServerConfig{Name: "x", Transport: "socket"})
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("connector error passes through", func(t *testing.T) {
		boom := errors.New("refused")
		d := NewDialer(zerolog.Nop())
		d.Pipe = ConnectorFunc(func(context.Context, ServerConfig) (Stream, error) { return nil, boom })
		_, err := d.Dial(context.Background(), ServerConfig{Name: "x", Transport: "pipe"})
		assert.ErrorIs(t, err, boom)
	})
}

func TestStartWithTimeout(t *testing.T) {
	t.Run("times out and closes", func(t *testing.T) {
		s := newStubStream()
		err := startWithTimeout(context.Background(), s, 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrConnectTimeout)

		select {
		case <-s.closed:
		case <-time.After(time.Second):
			t.Fatal("stream not closed after timeout")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := startWithTimeout(ctx, newStubStream(), time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("started in time", func(t *testing.T) {
		s := newStubStream()
		close(s.release)
		assert.NoError(t, startWithTimeout(context.Background(), s, time.Second))
	})
}
