package memory

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns strictly increasing UTC times.
func stepClock() func() time.Time {
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openTestStore(t *testing.T, path string, maxHistory int) *Store {
	t.Helper()
	s, err := Open(Config{
		Path:       path,
		MaxHistory: maxHistory,
		Logger:     zerolog.New(os.Stdout).Level(zerolog.ErrorLevel),
		Now:        stepClock(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func turn(i int) ConversationTurn {
	return ConversationTurn{UserInput: fmt.Sprintf("question %d", i), AIResponse: fmt.Sprintf("answer %d", i)}
}

func TestOpenAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "context_history.json")
	s := openTestStore(t, path, 10)

	assert.Regexp(t, `^\d{8}_\d{6}_[0-9a-z]{6}$`, s.SessionID())

	require.NoError(t, s.AppendTurn(turn(1)))
	require.NoError(t, s.AppendToolCall(ToolCallRecord{ToolName: "calculator", Input: map[string]any{"expression": "2+2"}, Output: "4", Success: true}))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path, 10)
	turns, calls := reopened.Len()
	assert.Equal(t, 1, turns)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "question 1", reopened.Recent(1)[0].UserInput)
	assert.NotEqual(t, s.SessionID(), reopened.SessionID())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp file left behind")
	}
}

func TestEviction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := openTestStore(t, path, 3)

	for i := 1; i <= 7; i++ {
		require.NoError(t, s.AppendTurn(turn(i)))
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, s.AppendToolCall(ToolCallRecord{ToolName: fmt.Sprintf("t%d", i), Success: true}))
	}

	turns, calls := s.Len()
	assert.Equal(t, 3, turns)
	assert.Equal(t, 15, calls)

	recent := s.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "question 5", recent[0].UserInput)
	assert.Equal(t, "question 7", recent[2].UserInput)

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, snap.Conversations, 3)
	assert.Len(t, snap.ToolCalls, 15)
	assert.Equal(t, "t5", snap.ToolCalls[0].ToolName)
}

func TestCorruptHistoryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	var logs bytes.Buffer
	s, err := Open(Config{Path: path, Logger: zerolog.New(&logs)})
	require.NoError(t, err)
	defer s.Close()

	turns, calls := s.Len()
	assert.Zero(t, turns)
	assert.Zero(t, calls)

	backup := filepath.Join(dir, "context_history.backup.json")
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "{not valid json", string(data))
	assert.Contains(t, logs.String(), "Unreadable history file moved aside")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadTrimsOversizedHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := openTestStore(t, path, 10)
	for i := 0; i < 6; i++ {
		require.NoError(t, s.AppendTurn(turn(i)))
	}
	require.NoError(t, s.Close())

	small := openTestStore(t, path, 2)
	turns, _ := small.Len()
	assert.Equal(t, 2, turns)
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := openTestStore(t, path, 10)
	require.NoError(t, s.AppendTurn(turn(1)))

	// A non-empty directory at the target path makes the rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))

	err := s.AppendTurn(turn(2))
	require.Error(t, err)

	recent := s.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "question 2", recent[1].UserInput)
}

func TestSingleWriterLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := openTestStore(t, path, 10)

	_, err := Open(Config{Path: path, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, s.Close())
	again, err := Open(Config{Path: path, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "h.json"), 5)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.AppendTurn(turn(1)), ErrClosed)
	assert.ErrorIs(t, s.AppendToolCall(ToolCallRecord{ToolName: "x"}), ErrClosed)
}

func TestClearSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := openTestStore(t, path, 10)

	require.NoError(t, s.AppendTurn(ConversationTurn{UserInput: "old", AIResponse: "kept", SessionID: "20240101_000000_aaaaaa"}))
	require.NoError(t, s.AppendTurn(turn(1)))
	require.NoError(t, s.AppendToolCall(ToolCallRecord{ToolName: "calc", Success: true}))

	before := s.SessionID()
	require.NoError(t, s.ClearSession())
	assert.NotEqual(t, before, s.SessionID())

	recent := s.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "old", recent[0].UserInput)
	_, calls := s.Len()
	assert.Equal(t, 1, calls)

	require.NoError(t, s.ClearAll())
	turns, calls := s.Len()
	assert.Zero(t, turns)
	assert.Zero(t, calls)

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, snap.Conversations)
	assert.NotNil(t, snap.Conversations)
}

func TestClearConversations(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "history.json"), 10)

	require.NoError(t, s.AppendTurn(ConversationTurn{UserInput: "old", SessionID: "20240101_000000_aaaaaa"}))
	require.NoError(t, s.AppendTurn(turn(1)))
	require.NoError(t, s.AppendToolCall(ToolCallRecord{ToolName: "calc", Success: true}))

	require.NoError(t, s.ClearConversations())
	turns, calls := s.Len()
	assert.Zero(t, turns)
	assert.Equal(t, 1, calls)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.ClearConversations(), ErrClosed)
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "logs/context_history.backup.json", BackupPath("logs/context_history.json"))
	assert.Equal(t, "history.backup.json", BackupPath("history"))
	assert.True(t, strings.HasSuffix(BackupPath("/a/b.txt"), "/a/b.backup.json"))
}
