package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/util"
)

const socketWriteWait = 10 * time.Second

// SocketConnector connects to a websocket endpoint carrying one JSON-RPC
// message per text frame.
type SocketConnector struct {
	Logger util.Logger
	Dialer *websocket.Dialer
}

// Connect implements Connector.
func (c *SocketConnector) Connect(ctx context.Context, cfg ServerConfig) (Stream, error) {
	s := NewSocket(cfg.URL, cfg.Headers, c.Dialer, loggerOr(c.Logger))
	if err := startWithTimeout(ctx, s, cfg.ConnectTimeout()); err != nil {
		return nil, fmt.Errorf("socket %s: %w", cfg.URL, err)
	}
	return s, nil
}

// Socket is a websocket implementation of the mcp-go transport interface.
type Socket struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer
	logger  util.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *mcptransport.JSONRPCResponse

	notifyMu       sync.RWMutex
	onNotification func(mcp.JSONRPCNotification)

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	connOnce  sync.Once
}

// NewSocket creates an unstarted socket transport.
func NewSocket(url string, headers map[string]string, dialer *websocket.Dialer, logger util.Logger) *Socket {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Socket{
		url:     url,
		headers: h,
		dialer:  dialer,
		logger:  loggerOr(logger),
		pending: make(map[string]chan *mcptransport.JSONRPCResponse),
		done:    make(chan struct{}),
	}
}

// Start dials the endpoint and begins reading frames. Calling it again after
// a successful start is a no-op.
func (s *Socket) Start(ctx context.Context) error {
	if s.started.Load() {
		return nil
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial: %w", err)
	}
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		conn.Close()
		return mcptransport.ErrTransportClosed
	default:
	}
	s.conn = conn
	s.started.Store(true)
	s.mu.Unlock()
	go s.readLoop()
	return nil
}

func (s *Socket) readLoop() {
	defer s.shutdown()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Errorf("socket read: %v", err)
				}
			}
			return
		}
		s.handleFrame(data)
	}
}

func (s *Socket) handleFrame(data []byte) {
	var base struct {
		ID     *mcp.RequestId `json:"id,omitempty"`
		Method string         `json:"method,omitempty"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		s.logger.Errorf("socket: dropping malformed frame: %v", err)
		return
	}

	switch {
	case base.Method != "" && base.ID == nil:
		var n mcp.JSONRPCNotification
		if err := json.Unmarshal(data, &n); err != nil {
			return
		}
		s.notifyMu.RLock()
		h := s.onNotification
		s.notifyMu.RUnlock()
		if h != nil {
			h(n)
		}
	case base.Method != "":
		// Server-initiated requests (sampling, roots) are not supported.
		s.reply(mcp.JSONRPCError{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      *base.ID,
			Error: mcp.JSONRPCErrorDetails{
				Code:    mcp.METHOD_NOT_FOUND,
				Message: fmt.Sprintf("method %q not supported by client", base.Method),
			},
		})
	case base.ID != nil:
		var resp mcptransport.JSONRPCResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		key := base.ID.String()
		s.mu.Lock()
		ch, ok := s.pending[key]
		delete(s.pending, key)
		s.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (s *Socket) reply(v any) {
	if err := s.write(v); err != nil {
		s.logger.Errorf("socket write: %v", err)
	}
}

func (s *Socket) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// SendRequest writes a request frame and waits for the matching response.
func (s *Socket) SendRequest(ctx context.Context, req mcptransport.JSONRPCRequest) (*mcptransport.JSONRPCResponse, error) {
	if !s.started.Load() {
		return nil, fmt.Errorf("socket transport not started")
	}
	select {
	case <-s.done:
		return nil, mcptransport.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key := req.ID.String()
	ch := make(chan *mcptransport.JSONRPCResponse, 1)
	s.mu.Lock()
	s.pending[key] = ch
	s.mu.Unlock()
	forget := func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}

	if err := s.write(req); err != nil {
		forget()
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-s.done:
		forget()
		return nil, mcptransport.ErrTransportClosed
	}
}

// SendNotification writes a notification frame.
func (s *Socket) SendNotification(ctx context.Context, n mcp.JSONRPCNotification) error {
	if !s.started.Load() {
		return fmt.Errorf("socket transport not started")
	}
	select {
	case <-s.done:
		return mcptransport.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return s.write(n)
}

// SetNotificationHandler implements the mcp-go transport interface.
func (s *Socket) SetNotificationHandler(h func(mcp.JSONRPCNotification)) {
	s.notifyMu.Lock()
	s.onNotification = h
	s.notifyMu.Unlock()
}

// Close sends a close frame and tears the connection down. It is safe to
// call more than once.
func (s *Socket) Close() error {
	s.mu.Lock()
	s.shutdown()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	var err error
	s.connOnce.Do(func() {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = conn.Close()
	})
	return err
}

func (s *Socket) shutdown() {
	s.closeOnce.Do(func() { close(s.done) })
}

// GetSessionId returns "". Websocket servers have no session header.
func (s *Socket) GetSessionId() string {
	return ""
}

// Done is closed once the socket has stopped reading.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}
