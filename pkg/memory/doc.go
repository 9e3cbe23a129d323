// Package memory is the durable context store: a bounded history of
// conversation turns and tool calls kept in one JSON document.
//
// Invariants:
//   - The store never holds more than MaxHistory turns or 5*MaxHistory tool
//     call records; the oldest entries are evicted first.
//   - Every write rewrites the whole document through a temp file and a
//     rename, so a failed write leaves the previous file intact.
//   - An unreadable history file is moved to <name>.backup.json and the
//     store starts empty.
//   - Only one process at a time may open a given history file.
//
// Usage:
//
//	store, err := memory.Open(memory.Config{Path: "logs/context_history.json", MaxHistory: 50, Logger: log})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	_ = store.AppendTurn(memory.ConversationTurn{UserInput: "hi", AIResponse: "hello"})
//	ctxText := store.RelevantContext("weather in Paris", 3)
package memory
