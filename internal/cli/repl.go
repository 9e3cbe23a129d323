package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/mcphub/pkg/memory"
	"github.com/harun/mcphub/pkg/session"
)

const (
	historyTurns  = 5
	previewLength = 100
)

// Processor answers one query. *agent.Orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, query string) string
}

// HistoryStore is the part of the context store the REPL commands use.
type HistoryStore interface {
	Recent(n int) []memory.ConversationTurn
	Stats() memory.Stats
	ClearSession() error
	Export(path string) bool
}

// ServerView exposes the live sessions and their tools.
type ServerView interface {
	Catalog() *session.Catalog
	Sessions() []session.Summary
}

// REPL is the line-oriented chat loop.
type REPL struct {
	In      io.Reader
	Out     io.Writer
	Agent   Processor
	Store   HistoryStore
	Servers ServerView
	Logger  zerolog.Logger

	// ExportDir receives /export files.
	ExportDir string
	// Prompt enables the input prompt, normally only on a terminal.
	Prompt bool
	// Reload delivers config change events; OnReload applies them between turns.
	Reload   <-chan struct{}
	OnReload func(ctx context.Context)
	// Now overrides the clock used for export file names.
	Now func() time.Time
}

// Run reads lines until exit, end of input or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	if r.Now == nil {
		r.Now = time.Now
	}
	r.banner()
	lines := readLines(r.In)

	for {
		r.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.Out, "\nInterrupted, shutting down.")
			return nil
		case <-r.Reload:
			if r.OnReload != nil {
				r.OnReload(ctx)
			}
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.Out)
				return nil
			}
			if r.handle(ctx, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// readLines feeds input lines to a channel that is closed at end of input.
// The goroutine stays blocked on a pending read if the loop exits first.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (r *REPL) banner() {
	fmt.Fprintln(r.Out, "mcphub is ready. Ask a question, or type 'exit' to quit.")
	r.help()
}

func (r *REPL) help() {
	fmt.Fprintln(r.Out, "Commands:")
	fmt.Fprintln(r.Out, "  /history  show the most recent turns")
	fmt.Fprintln(r.Out, "  /stats    show tool usage statistics")
	fmt.Fprintln(r.Out, "  /clear    clear the current session")
	fmt.Fprintln(r.Out, "  /export   export the history to a file")
	fmt.Fprintln(r.Out, "  /tools    list the available tools")
	fmt.Fprintln(r.Out, "  /servers  list the connected servers")
	fmt.Fprintln(r.Out, "  /help     show this list")
}

func (r *REPL) prompt() {
	if r.Prompt {
		fmt.Fprint(r.Out, "\nyou> ")
	}
}

// handle runs one input line and reports whether the loop should stop.
func (r *REPL) handle(ctx context.Context, line string) (quit bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error().Interface("panic", rec).Str("input", line).Msg("REPL command panicked")
			fmt.Fprintf(r.Out, "\nError: %v\n", rec)
			quit = false
		}
	}()

	if line == "" {
		return false
	}
	switch strings.ToLower(line) {
	case "exit", "quit":
		fmt.Fprintln(r.Out, "Goodbye.")
		return true
	}

	if !strings.HasPrefix(line, "/") {
		answer := r.Agent.Process(ctx, line)
		fmt.Fprintf(r.Out, "\nai> %s\n", answer)
		return false
	}

	switch command := strings.ToLower(strings.Fields(line)[0]); command {
	case "/history":
		r.showHistory()
	case "/stats":
		r.showStats()
	case "/clear":
		r.clear()
	case "/export":
		r.export()
	case "/tools":
		printCatalog(r.Out, r.Servers.Catalog())
	case "/servers":
		printSessions(r.Out, r.Servers.Sessions())
	case "/help":
		r.help()
	default:
		fmt.Fprintf(r.Out, "Unknown command %s. Type /help for the list of commands.\n", command)
	}
	return false
}

func (r *REPL) showHistory() {
	turns := r.Store.Recent(historyTurns)
	if len(turns) == 0 {
		fmt.Fprintln(r.Out, "\nNo conversation history yet.")
		return
	}
	fmt.Fprintln(r.Out, "\nRecent conversation history:")
	for i, t := range turns {
		fmt.Fprintf(r.Out, "\n--- Turn %d (%s) ---\n", i+1, t.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(r.Out, "you: %s\n", preview(t.UserInput))
		fmt.Fprintf(r.Out, "ai:  %s\n", preview(t.AIResponse))
		if len(t.ToolCalls) > 0 {
			fmt.Fprintf(r.Out, "tool calls: %d\n", len(t.ToolCalls))
		}
	}
}

// preview cuts s to previewLength characters.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength]) + "..."
}

func (r *REPL) showStats() {
	printStats(r.Out, r.Store.Stats(), r.Now())
}

// printStats renders tool usage statistics, tools sorted by name.
func printStats(w io.Writer, st memory.Stats, now time.Time) {
	fmt.Fprintln(w, "\nTool usage statistics:")
	fmt.Fprintf(w, "Total calls:  %d\n", st.TotalCalls)
	fmt.Fprintf(w, "Success rate: %.1f%%\n", st.SuccessRate*100)
	if len(st.ToolStats) == 0 {
		fmt.Fprintln(w, "No tool calls recorded yet.")
		return
	}

	names := make([]string, 0, len(st.ToolStats))
	for name := range st.ToolStats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "\nPer tool:")
	for _, name := range names {
		ts := st.ToolStats[name]
		fmt.Fprintf(w, "  %s\n", name)
		fmt.Fprintf(w, "     calls:        %d\n", ts.Total)
		fmt.Fprintf(w, "     success rate: %.1f%%\n", ts.SuccessRate*100)
		fmt.Fprintf(w, "     last used:    %s (%s ago)\n",
			ts.LastUsed.Format("2006-01-02 15:04:05"), formatDuration(now.Sub(ts.LastUsed)))
	}
}

func (r *REPL) clear() {
	if err := r.Store.ClearSession(); err != nil {
		r.Logger.Error().Err(err).Msg("Failed to persist cleared session")
		fmt.Fprintf(r.Out, "\nSession cleared in memory, but saving failed: %v\n", err)
		return
	}
	fmt.Fprintln(r.Out, "\nThe current session's context has been cleared.")
}

func (r *REPL) export() {
	path := filepath.Join(r.ExportDir, memory.ExportFileName(r.Now()))
	if !r.Store.Export(path) {
		fmt.Fprintln(r.Out, "\nExport failed, see the log for details.")
		return
	}
	fmt.Fprintf(r.Out, "\nHistory exported to %s\n", path)
}
