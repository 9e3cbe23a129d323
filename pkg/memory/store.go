package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/mcphub/internal/metrics"
)

const (
	// DefaultMaxHistory is the turn bound used when none is configured.
	DefaultMaxHistory = 50
	// ToolCallFactor sizes the tool-call bound relative to MaxHistory.
	ToolCallFactor = 5

	sessionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	// ErrLocked is returned by Open when another process holds the file.
	ErrLocked = errors.New("history file is in use by another process")
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("context store is closed")
)

// Config configures a Store.
type Config struct {
	Path       string
	MaxHistory int
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Store is the write-through context store.
type Store struct {
	path       string
	maxHistory int
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu        sync.Mutex
	doc       document
	sessionID string
	lock      *fileLock
	closed    bool
}

// Open loads the history at cfg.Path and takes the single-writer lock.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("context store path is required")
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create context directory: %w", err)
	}

	lock, err := acquireLock(cfg.Path + ".lock")
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:       cfg.Path,
		maxHistory: cfg.MaxHistory,
		logger:     cfg.Logger.With().Str("component", "memory").Logger(),
		metrics:    cfg.Metrics,
		now:        cfg.Now,
		lock:       lock,
	}
	s.sessionID = s.newSessionID()
	s.load()

	s.logger.Info().
		Str("path", s.path).
		Str("session_id", s.sessionID).
		Int("turns", len(s.doc.Conversations)).
		Int("tool_calls", len(s.doc.ToolCalls)).
		Msg("Context store opened")
	return s, nil
}

// newSessionID returns a timestamp plus a short random suffix so two
// sessions started in the same second stay distinct.
func (s *Store) newSessionID() string {
	ts := s.now().Format("20060102_150405")
	suffix, err := gonanoid.Generate(sessionAlphabet, 6)
	if err != nil {
		return ts
	}
	return ts + "_" + suffix
}

// BackupPath returns where an unreadable history file is moved.
func BackupPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".backup.json"
}

// load reads the history file. A missing file is an empty store; an
// unreadable one is moved aside.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err == nil {
		var doc document
		if err = json.Unmarshal(data, &doc); err == nil {
			s.doc = doc
			s.evict()
			return
		}
	}

	backup := BackupPath(s.path)
	log := s.logger.Warn().Err(err).Str("path", s.path)
	if rerr := os.Rename(s.path, backup); rerr != nil {
		log.AnErr("backup_error", rerr).Msg("Unreadable history file could not be backed up, starting empty")
	} else {
		log.Str("backup", backup).Msg("Unreadable history file moved aside, starting empty")
	}
	s.doc = document{}
}

func (s *Store) toolCallBound() int {
	return s.maxHistory * ToolCallFactor
}

// evict drops the oldest entries beyond the bounds.
func (s *Store) evict() {
	if n := len(s.doc.Conversations) - s.maxHistory; n > 0 {
		s.doc.Conversations = append([]ConversationTurn(nil), s.doc.Conversations[n:]...)
	}
	if n := len(s.doc.ToolCalls) - s.toolCallBound(); n > 0 {
		s.doc.ToolCalls = append([]ToolCallRecord(nil), s.doc.ToolCalls[n:]...)
	}
}

// persist rewrites the history file. Callers hold s.mu.
func (s *Store) persist() error {
	s.doc.LastUpdated = s.now()
	if s.doc.Conversations == nil {
		s.doc.Conversations = []ConversationTurn{}
	}
	if s.doc.ToolCalls == nil {
		s.doc.ToolCalls = []ToolCallRecord{}
	}
	err := writeJSONAtomic(s.path, s.doc)
	s.metrics.StoreWrite(err == nil)
	if err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist context history")
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// writeJSONAtomic writes v to a temp file next to path and renames it over
// path.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// SessionID returns the current session id.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// AppendTurn records a turn and persists. On a write failure the turn stays
// in memory and the error is returned.
func (s *Store) AppendTurn(turn ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	if turn.SessionID == "" {
		turn.SessionID = s.sessionID
	}
	s.doc.Conversations = append(s.doc.Conversations, turn)
	s.evict()
	return s.persist()
}

// AppendToolCall records a tool call and persists.
func (s *Store) AppendToolCall(rec ToolCallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	if rec.SessionID == "" {
		rec.SessionID = s.sessionID
	}
	s.doc.ToolCalls = append(s.doc.ToolCalls, rec)
	s.evict()
	s.logger.Debug().
		Str("tool", rec.ToolName).
		Bool("success", rec.Success).
		Msg("Tool call recorded")
	return s.persist()
}

// Recent returns up to n of the most recent turns, oldest first.
func (s *Store) Recent(n int) []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return nil
	}
	turns := s.doc.Conversations
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]ConversationTurn(nil), turns...)
}

// Len returns the number of stored turns and tool call records.
func (s *Store) Len() (turns, toolCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Conversations), len(s.doc.ToolCalls)
}

// ClearSession drops the current session's turns and starts a new session.
// Tool call records are kept for statistics.
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	kept := s.doc.Conversations[:0]
	for _, t := range s.doc.Conversations {
		if t.SessionID != s.sessionID {
			kept = append(kept, t)
		}
	}
	s.doc.Conversations = kept
	old := s.sessionID
	s.sessionID = s.newSessionID()
	s.logger.Info().Str("old_session_id", old).Str("session_id", s.sessionID).Msg("Session cleared")
	return s.persist()
}

// ClearConversations drops every turn of every session and starts a new
// session. Tool call records are kept.
func (s *Store) ClearConversations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.doc.Conversations = nil
	s.sessionID = s.newSessionID()
	s.logger.Info().Str("session_id", s.sessionID).Msg("Conversation history cleared")
	return s.persist()
}

// ClearAll drops every turn and tool call and starts a new session.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.doc.Conversations = nil
	s.doc.ToolCalls = nil
	s.sessionID = s.newSessionID()
	s.logger.Info().Str("session_id", s.sessionID).Msg("All history cleared")
	return s.persist()
}

// Close releases the single-writer lock. Further writes fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.release()
}
