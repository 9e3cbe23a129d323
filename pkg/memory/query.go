package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// RelevantContext renders prior turns for injection into a model request.
// The last maxTurns turns are always included. Older turns sharing at least
// one case-folded word with query are added, newest first, until 2*maxTurns
// turns are selected. Output is in chronological order.
func (s *Store) RelevantContext(query string, maxTurns int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.doc.Conversations
	if len(turns) == 0 || maxTurns <= 0 {
		return ""
	}

	split := len(turns) - maxTurns
	if split < 0 {
		split = 0
	}
	recent := turns[split:]
	older := turns[:split]

	keywords := tokenize(query)
	var matched []ConversationTurn
	budget := 2*maxTurns - len(recent)
	for i := len(older) - 1; i >= 0 && len(matched) < budget; i-- {
		if sharesToken(keywords, older[i]) {
			matched = append(matched, older[i])
		}
	}

	selected := make([]ConversationTurn, 0, len(matched)+len(recent))
	for i := len(matched) - 1; i >= 0; i-- {
		selected = append(selected, matched[i])
	}
	selected = append(selected, recent...)

	var b strings.Builder
	for _, t := range selected {
		fmt.Fprintf(&b, "User: %s\n", t.UserInput)
		fmt.Fprintf(&b, "AI: %s\n", t.AIResponse)
		for _, tc := range t.ToolCalls {
			name := tc.Name
			if name == "" {
				name = "unknown"
			}
			fmt.Fprintf(&b, "Tool call: %s\n", name)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[f] = struct{}{}
	}
	return out
}

func sharesToken(keywords map[string]struct{}, t ConversationTurn) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, f := range strings.Fields(strings.ToLower(t.UserInput + " " + t.AIResponse)) {
		if _, ok := keywords[f]; ok {
			return true
		}
	}
	return false
}

// Stats summarizes the stored tool calls. Rates are zero when there are none.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeStats(s.doc.ToolCalls)
}

func computeStats(calls []ToolCallRecord) Stats {
	st := Stats{ToolStats: make(map[string]ToolStat)}
	success := 0
	for _, c := range calls {
		ts := st.ToolStats[c.ToolName]
		ts.Total++
		if c.Success {
			ts.Success++
			success++
		}
		if c.Timestamp.After(ts.LastUsed) {
			ts.LastUsed = c.Timestamp
		}
		st.ToolStats[c.ToolName] = ts
	}
	for name, ts := range st.ToolStats {
		ts.SuccessRate = float64(ts.Success) / float64(ts.Total)
		st.ToolStats[name] = ts
	}
	st.TotalCalls = len(calls)
	if st.TotalCalls > 0 {
		st.SuccessRate = float64(success) / float64(st.TotalCalls)
	}
	return st
}

// Export writes the full history plus stats to path. It reports success and
// logs failures instead of returning them.
func (s *Store) Export(path string) bool {
	s.mu.Lock()
	snap := Snapshot{
		ExportTime:    s.now(),
		SessionID:     s.sessionID,
		Conversations: append([]ConversationTurn{}, s.doc.Conversations...),
		ToolCalls:     append([]ToolCallRecord{}, s.doc.ToolCalls...),
		LastUpdated:   s.doc.LastUpdated,
	}
	stats := computeStats(s.doc.ToolCalls)
	snap.Stats = &stats
	s.mu.Unlock()

	if err := writeJSONAtomic(path, snap); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("History export failed")
		return false
	}
	s.logger.Info().Str("path", path).Int("turns", len(snap.Conversations)).Msg("History exported")
	return true
}

// ExportFileName returns the conventional export file name for t.
func ExportFileName(t time.Time) string {
	return "history_export_" + t.Format("20060102_150405") + ".json"
}

// LoadSnapshot reads a history file or an export file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
