package memory

import "time"

// ToolCallSummary is the per-turn view of one tool call.
type ToolCallSummary struct {
	Name    string         `json:"name"`
	Input   map[string]any `json:"input,omitempty"`
	Output  string         `json:"output,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
}

// ConversationTurn is one user query and the final answer to it.
type ConversationTurn struct {
	Timestamp  time.Time         `json:"timestamp"`
	TurnID     string            `json:"turn_id,omitempty"`
	UserInput  string            `json:"user_input"`
	AIResponse string            `json:"ai_response"`
	ToolCalls  []ToolCallSummary `json:"tool_calls,omitempty"`
	SessionID  string            `json:"session_id"`
}

// ToolCallRecord is one tool invocation.
type ToolCallRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	ToolName  string         `json:"tool_name"`
	Input     map[string]any `json:"input_params"`
	Output    string         `json:"output"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// ToolStat aggregates the calls of one tool.
type ToolStat struct {
	Total       int       `json:"total"`
	Success     int       `json:"success"`
	SuccessRate float64   `json:"success_rate"`
	LastUsed    time.Time `json:"last_used"`
}

// Stats summarizes tool usage.
type Stats struct {
	TotalCalls  int                 `json:"total_calls"`
	SuccessRate float64             `json:"success_rate"`
	ToolStats   map[string]ToolStat `json:"tool_stats"`
}

// document is the on-disk history format.
type document struct {
	Conversations []ConversationTurn `json:"conversations"`
	ToolCalls     []ToolCallRecord   `json:"tool_calls"`
	LastUpdated   time.Time          `json:"last_updated"`
}

// Snapshot is a history or export file read back from disk.
type Snapshot struct {
	ExportTime    time.Time          `json:"export_time,omitempty"`
	SessionID     string             `json:"session_id,omitempty"`
	Conversations []ConversationTurn `json:"conversations"`
	ToolCalls     []ToolCallRecord   `json:"tool_calls"`
	LastUpdated   time.Time          `json:"last_updated,omitempty"`
	Stats         *Stats             `json:"stats,omitempty"`
}
