package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/mcphub/internal/metrics"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered by the configured servers",
	Long: `Connect to every enabled server in the config file, print the
aggregated tool catalog and disconnect again.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := newManager(l.Zerolog(), metrics.NewMetrics())
	defer mgr.Cleanup()

	out := cmd.OutOrStdout()
	printConnectReport(out, mgr.ConnectAll(ctx, cfg.Servers))
	printCatalog(out, mgr.ListAggregatedTools(ctx))
	return nil
}
