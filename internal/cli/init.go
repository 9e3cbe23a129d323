package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/mcphub/internal/config"
	"github.com/harun/mcphub/pkg/transport"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter config file with the default settings and one disabled
example server. An existing file is only replaced with --force.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	path := loader.GetConfigPath()
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	if err := loader.Save(starterConfig()); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration saved to: %s\n", path)
	fmt.Fprintf(out, "Set %s (or llm.api_key), add your servers, then run: mcphub chat\n", config.EnvOpenAIKey)
	return nil
}

// starterConfig is the default config plus a disabled example server.
func starterConfig() *config.Config {
	cfg := config.DefaultConfig()
	disabled := false
	cfg.Servers = []transport.ServerConfig{{
		Name:      "example",
		Transport: string(transport.KindPipe),
		Command:   "python",
		Args:      []string{"servers/example_server.py"},
		Enabled:   &disabled,
	}}
	return cfg
}
