package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/mcphub/internal/config"
	"github.com/harun/mcphub/internal/metrics"
	"github.com/harun/mcphub/pkg/memory"
)

var checkServers bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and history status",
	Long: `Show the configured servers, the inference provider and the state of the
saved history. With --check every enabled server is connected once.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&checkServers, "check", false, "connect to each enabled server and report the result")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Config:   %s\n", config.NewLoader(cfgFile).GetConfigPath())
	fmt.Fprintf(out, "Provider: %s (model %s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	if err := cfg.RequireCredentials(); err != nil {
		fmt.Fprintf(out, "API key:  missing (%v)\n", err)
	} else {
		fmt.Fprintln(out, "API key:  set")
	}
	printServerConfigs(out, cfg)

	store, err := openStore(cfg, l.Zerolog(), nil)
	switch {
	case errors.Is(err, memory.ErrLocked):
		fmt.Fprintf(out, "History:  %s (in use by a running chat)\n", cfg.Context.File)
	case err != nil:
		fmt.Fprintf(out, "History:  %s (%v)\n", cfg.Context.File, err)
	default:
		turns, calls := store.Len()
		fmt.Fprintf(out, "History:  %s (%d turns, %d tool calls)\n", cfg.Context.File, turns, calls)
		_ = store.Close()
	}

	if !checkServers {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := newManager(l.Zerolog(), metrics.NewMetrics())
	defer mgr.Cleanup()

	start := time.Now()
	report := mgr.ConnectAll(ctx, cfg.Servers)
	fmt.Fprintf(out, "\nConnectivity check (%s):\n", formatDuration(time.Since(start)))
	printConnectReport(out, report)
	printSessions(out, mgr.Sessions())
	return nil
}

func printServerConfigs(w io.Writer, cfg *config.Config) {
	if len(cfg.Servers) == 0 {
		fmt.Fprintln(w, "Servers:  none configured")
		return
	}
	fmt.Fprintf(w, "Servers:  %d configured\n", len(cfg.Servers))
	for _, s := range cfg.Servers {
		state := "enabled"
		if !s.IsEnabled() {
			state = "disabled"
		}
		fmt.Fprintf(w, "  - %s (%s, %s)\n", s.Name, s.Transport, state)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
