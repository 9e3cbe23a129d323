package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipeHelperEnv = "MCPHUB_PIPE_SERVER_HELPER"

// TestPipeServerHelper is not a real test. It runs the echo server over
// stdio when the pipe connector re-executes the test binary.
func TestPipeServerHelper(t *testing.T) {
	if os.Getenv(pipeHelperEnv) != "1" {
		t.Skip("helper process")
	}
	_ = server.ServeStdio(newEchoServer())
	os.Exit(0)
}

func TestConnectors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := NewDialer(zerolog.Nop())

	t.Run("pipe", func(t *testing.T) {
		cfg := ServerConfig{
			Name:      "echo-pipe",
			Transport: "pipe",
			Command:   os.Args[0],
			Args:      []string{"-test.run=^TestPipeServerHelper$"},
			Env:       map[string]string{pipeHelperEnv: "1"},
		}
		s, err := d.Dial(ctx, cfg)
		require.NoError(t, err)
		defer s.Close()
		exerciseStream(t, s)
	})

	t.Run("sse", func(t *testing.T) {
		ts := server.NewTestServer(newEchoServer())
		defer ts.Close()

		s, err := d.Dial(ctx, ServerConfig{Name: "echo-sse", Transport: "sse", URL: ts.URL + "/sse"})
		require.NoError(t, err)
		defer s.Close()
		exerciseStream(t, s)
	})

	t.Run("streaming-http", func(t *testing.T) {
		ts := server.NewTestStreamableHTTPServer(newEchoServer())
		defer ts.Close()

		s, err := d.Dial(ctx, ServerConfig{
			Name:      "echo-http",
			Transport: "streaming-http",
			URL:       ts.URL + "/mcp",
			Headers:   map[string]string{"X-Client": "mcphub"},
		})
		require.NoError(t, err)
		defer s.Close()
		exerciseStream(t, s)
	})

	t.Run("socket", func(t *testing.T) {
		ts := newSocketServer(t, newEchoServer())

		s, err := d.Dial(ctx, ServerConfig{Name: "echo-ws", Transport: "socket", URL: wsURL(ts.URL)})
		require.NoError(t, err)
		defer s.Close()
		exerciseStream(t, s)
	})
}

func TestPipeConnectorMissingBinary(t *testing.T) {
	d := NewDialer(zerolog.Nop())
	_, err := d.Dial(context.Background(), ServerConfig{
		Name:      "ghost",
		Transport: "pipe",
		Command:   "/nonexistent/mcp-server-binary",
	})
	assert.Error(t, err)
}

func TestSocketUnreachable(t *testing.T) {
	d := NewDialer(zerolog.Nop())
	_, err := d.Dial(context.Background(), ServerConfig{
		Name:      "down",
		Transport: "socket",
		URL:       "ws://127.0.0.1:1/mcp",
		Timeout:   2 * time.Second,
	})
	assert.Error(t, err)
}

func TestSocketClose(t *testing.T) {
	ts := newSocketServer(t, newEchoServer())
	s := NewSocket(wsURL(ts.URL), nil, nil, nil)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("socket not done after close")
	}
	_, err := s.SendRequest(context.Background(), jsonrpcPing())
	assert.Error(t, err)
}
