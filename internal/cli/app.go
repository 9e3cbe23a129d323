package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harun/mcphub/internal/config"
	"github.com/harun/mcphub/internal/logger"
	"github.com/harun/mcphub/internal/metrics"
	"github.com/harun/mcphub/pkg/memory"
	"github.com/harun/mcphub/pkg/session"
)

// loadConfig reads the config file named by --config and applies --log-level
// when it was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. Console output is only pretty
// printed when stderr is a terminal.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := cfg.Logging
	if lc.Console && !isTerminal(os.Stderr) {
		lc.Pretty = false
	}
	l, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func openStore(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*memory.Store, error) {
	store, err := memory.Open(memory.Config{
		Path:       cfg.Context.File,
		MaxHistory: cfg.Context.MaxHistory,
		Logger:     log,
		Metrics:    m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open context store: %w", err)
	}
	return store, nil
}

func newManager(log zerolog.Logger, m *metrics.Metrics) *session.Manager {
	return session.NewManager(session.Config{
		Logger:     log,
		Metrics:    m,
		ClientName: "mcphub",
		Version:    version,
	})
}

// printConnectReport writes one line per server outcome.
func printConnectReport(w io.Writer, report session.ConnectReport) {
	for _, name := range report.Connected {
		fmt.Fprintf(w, "Connected: %s\n", name)
	}
	for _, name := range report.Skipped {
		fmt.Fprintf(w, "Skipped:   %s\n", name)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "Failed:    %s (%s): %v\n", f.Server, f.Stage, f.Err)
	}
}

// printCatalog lists the aggregated tools in catalog order.
func printCatalog(w io.Writer, catalog *session.Catalog) {
	tools := catalog.Tools()
	if len(tools) == 0 {
		fmt.Fprintln(w, "No tools available.")
		return
	}
	fmt.Fprintf(w, "Available tools (%d):\n", len(tools))
	for _, t := range tools {
		desc := strings.TrimSpace(t.Description)
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(w, "  - %s [%s]: %s\n", t.Name, t.Server, desc)
	}
}

// printSessions lists the live sessions in connection order.
func printSessions(w io.Writer, sessions []session.Summary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No servers connected.")
		return
	}
	fmt.Fprintf(w, "Connected servers (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  - %s (%s) %s %s, protocol %s, %d tools\n",
			s.Name, s.Kind, s.Server, s.Version, s.Protocol, s.Tools)
	}
}
