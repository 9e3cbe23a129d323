package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/mcphub/internal/config"
	"github.com/harun/mcphub/pkg/memory"
)

var clearAll bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or manage the saved conversation history",
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tool usage statistics",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export the history and statistics to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the saved conversation history",
	Long: `Clear the saved conversation history. Without --all only the turns are
removed and the tool call records are kept for statistics.`,
	Args: cobra.NoArgs,
	RunE: runHistoryClear,
}

func init() {
	historyClearCmd.Flags().BoolVar(&clearAll, "all", false, "also remove tool call records")

	historyCmd.AddCommand(historyStatsCmd, historyExportCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// withStore opens the context store named by the config for fn.
func withStore(cmd *cobra.Command, fn func(cfg *config.Config, store *memory.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	store, err := openStore(cfg, l.Zerolog(), nil)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, store *memory.Store) error {
		turns, calls := store.Len()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "History file: %s\n", cfg.Context.File)
		fmt.Fprintf(out, "Turns:        %d\n", turns)
		fmt.Fprintf(out, "Tool calls:   %d\n", calls)
		printStats(out, store.Stats(), time.Now())
		return nil
	})
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, store *memory.Store) error {
		if !store.Export(args[0]) {
			return fmt.Errorf("failed to export history to %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "History exported to %s\n", args[0])
		return nil
	})
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(cfg *config.Config, store *memory.Store) error {
		var err error
		if clearAll {
			err = store.ClearAll()
		} else {
			err = store.ClearConversations()
		}
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	})
}
