package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/harun/mcphub/internal/metrics"
	"github.com/harun/mcphub/pkg/transport"
)

// Dialer opens a started stream for a server. *transport.Dialer implements it.
type Dialer interface {
	Dial(ctx context.Context, cfg transport.ServerConfig) (transport.Stream, error)
}

// Config configures a Manager.
type Config struct {
	Dialer     Dialer
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	ClientName string
	// Version is announced in the handshake.
	Version string
}

// Session is one live connection to a tool server.
type Session struct {
	Name        string
	Kind        transport.Kind
	Config      transport.ServerConfig
	Server      mcp.Implementation
	Protocol    string
	ConnectedAt time.Time

	client *client.Client
	tools  []mcp.Tool
}

// Summary describes a live session for display.
type Summary struct {
	Name        string
	Kind        transport.Kind
	Server      string
	Version     string
	Protocol    string
	Tools       int
	ConnectedAt time.Time
}

// ConnectReport lists the outcome of ConnectAll per server.
type ConnectReport struct {
	Connected []string
	Skipped   []string
	Failed    []*ServerError
}

// Manager owns every server session. Sessions are kept in connection order.
type Manager struct {
	dialer     Dialer
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	clientInfo mcp.Implementation

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	catalog  *Catalog
}

// NewManager creates a Manager. A nil Dialer uses the built-in transports.
func NewManager(cfg Config) *Manager {
	log := cfg.Logger.With().Str("component", "session").Logger()
	d := cfg.Dialer
	if d == nil {
		d = transport.NewDialer(cfg.Logger)
	}
	name := cfg.ClientName
	if name == "" {
		name = "mcphub"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Manager{
		dialer:     d,
		logger:     log,
		metrics:    cfg.Metrics,
		clientInfo: mcp.Implementation{Name: name, Version: version},
		sessions:   make(map[string]*Session),
	}
}

// ConnectAll connects the configured servers in order. ctx bounds the
// lifetime of the sessions. Failures are logged and reported, never fatal.
func (m *Manager) ConnectAll(ctx context.Context, configs []transport.ServerConfig) ConnectReport {
	var report ConnectReport

	for _, cfg := range configs {
		if ctx.Err() != nil {
			break
		}
		if !cfg.IsEnabled() {
			m.logger.Info().Str("server", cfg.Name).Msg("Server disabled, skipping")
			report.Skipped = append(report.Skipped, cfg.Name)
			continue
		}
		if m.has(cfg.Name) {
			m.logger.Warn().Str("server", cfg.Name).Msg("Server already connected, skipping")
			report.Skipped = append(report.Skipped, cfg.Name)
			continue
		}

		s, err := m.connect(ctx, cfg)
		if err != nil {
			se := asServerError(cfg.Name, err)
			m.logger.Error().
				Err(se.Err).
				Str("server", se.Server).
				Str("stage", se.Stage).
				Str("transport", cfg.Transport).
				Msg("Failed to connect server")
			m.metrics.ServerFailure(se.Server, se.Stage)
			report.Failed = append(report.Failed, se)
			continue
		}

		m.mu.Lock()
		if _, dup := m.sessions[cfg.Name]; dup {
			m.mu.Unlock()
			_ = s.client.Close()
			report.Skipped = append(report.Skipped, cfg.Name)
			continue
		}
		m.sessions[cfg.Name] = s
		m.order = append(m.order, cfg.Name)
		n := len(m.sessions)
		m.mu.Unlock()

		m.metrics.SetSessions(n)
		report.Connected = append(report.Connected, cfg.Name)
		m.logger.Info().
			Str("server", cfg.Name).
			Str("transport", string(s.Kind)).
			Str("server_name", s.Server.Name).
			Str("server_version", s.Server.Version).
			Int("tools", len(s.tools)).
			Msg("Server connected")
	}
	return report
}

func asServerError(name string, err error) *ServerError {
	var se *ServerError
	if errors.As(err, &se) {
		return se
	}
	return &ServerError{Server: name, Stage: StageConnect, Err: err}
}

// connect runs dial, handshake and the first catalog fetch for one server.
// A catalog failure keeps the session with no tools.
func (m *Manager) connect(ctx context.Context, cfg transport.ServerConfig) (*Session, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, &ServerError{Server: cfg.Name, Stage: StageConnect, Err: err}
	}

	stream, err := m.dialer.Dial(ctx, cfg)
	if err != nil {
		return nil, &ServerError{Server: cfg.Name, Stage: StageConnect, Err: err}
	}

	c := client.NewClient(stream)
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, &ServerError{Server: cfg.Name, Stage: StageConnect, Err: err}
	}

	hctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = m.clientInfo
	req.Params.Capabilities = mcp.ClientCapabilities{}

	initRes, err := c.Initialize(hctx, req)
	if err != nil {
		_ = c.Close()
		return nil, &ServerError{Server: cfg.Name, Stage: StageHandshake, Err: err}
	}

	s := &Session{
		Name:        cfg.Name,
		Kind:        kind,
		Config:      cfg,
		Server:      initRes.ServerInfo,
		Protocol:    initRes.ProtocolVersion,
		ConnectedAt: time.Now(),
		client:      c,
	}

	tools, err := c.ListTools(hctx, mcp.ListToolsRequest{})
	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("server", cfg.Name).
			Str("stage", StageCatalog).
			Msg("Failed to fetch tool catalog, keeping session without tools")
		m.metrics.ServerFailure(cfg.Name, StageCatalog)
	} else {
		s.tools = tools.Tools
	}
	return s, nil
}

func (m *Manager) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[name]
	return ok
}

// snapshot returns the live sessions in connection order.
func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.order))
	for _, name := range m.order {
		if s, ok := m.sessions[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ListAggregatedTools refreshes every session's tools and rebuilds the
// catalog used by Dispatch. A server whose refresh fails contributes nothing.
func (m *Manager) ListAggregatedTools(ctx context.Context) *Catalog {
	sessions := m.snapshot()
	groups := make([]serverTools, 0, len(sessions))

	for _, s := range sessions {
		lctx, cancel := context.WithTimeout(ctx, s.Config.ConnectTimeout())
		res, err := s.client.ListTools(lctx, mcp.ListToolsRequest{})
		cancel()

		var tools []mcp.Tool
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("server", s.Name).
				Str("stage", StageCatalog).
				Msg("Failed to list tools")
			m.metrics.ServerFailure(s.Name, StageCatalog)
		} else {
			tools = res.Tools
		}

		m.mu.Lock()
		s.tools = tools
		m.mu.Unlock()
		groups = append(groups, serverTools{server: s.Name, tools: tools})
	}

	cat := buildCatalog(groups, m.logger)

	m.mu.Lock()
	m.catalog = cat
	m.mu.Unlock()
	m.metrics.SetCatalogSize(cat.Len())

	m.logger.Debug().
		Int("servers", len(groups)).
		Int("tools", cat.Len()).
		Msg("Tool catalog rebuilt")
	return cat
}

// Catalog returns the most recently built catalog, or nil.
func (m *Manager) Catalog() *Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog
}

// Sessions summarizes the live sessions in connection order.
func (m *Manager) Sessions() []Summary {
	sessions := m.snapshot()
	out := make([]Summary, 0, len(sessions))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		out = append(out, Summary{
			Name:        s.Name,
			Kind:        s.Kind,
			Server:      s.Server.Name,
			Version:     s.Server.Version,
			Protocol:    s.Protocol,
			Tools:       len(s.tools),
			ConnectedAt: s.ConnectedAt,
		})
	}
	return out
}

// Disconnect closes and forgets one session.
func (m *Manager) Disconnect(name string) error {
	m.mu.Lock()
	s, ok := m.sessions[name]
	if ok {
		delete(m.sessions, name)
		m.order = removeName(m.order, name)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, name)
	}
	m.metrics.SetSessions(n)

	if err := s.client.Close(); err != nil {
		m.logger.Warn().Err(err).Str("server", name).Msg("Error closing session")
		return err
	}
	m.logger.Info().Str("server", name).Msg("Server disconnected")
	return nil
}

// Cleanup closes every session, most recent first. Close failures are
// logged and do not stop the remaining closes. Safe to call more than once.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if s, ok := m.sessions[m.order[i]]; ok {
			sessions = append(sessions, s)
		}
	}
	m.sessions = make(map[string]*Session)
	m.order = nil
	m.catalog = nil
	m.mu.Unlock()

	for _, s := range sessions {
		if err := closeQuietly(s); err != nil {
			m.logger.Warn().Err(err).Str("server", s.Name).Msg("Error closing session during cleanup")
		}
	}
	m.metrics.SetSessions(0)
	if len(sessions) > 0 {
		m.logger.Info().Int("sessions", len(sessions)).Msg("All sessions closed")
	}
}

func closeQuietly(s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic closing session: %v", r)
		}
	}()
	return s.client.Close()
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
