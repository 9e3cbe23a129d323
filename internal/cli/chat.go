package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/mcphub/internal/config"
	"github.com/harun/mcphub/internal/metrics"
	"github.com/harun/mcphub/pkg/agent"
	"github.com/harun/mcphub/pkg/session"
)

var (
	watchConfig bool
	metricsAddr string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	Long: `Connect to every enabled server in the config file and start the
interactive chat. Type 'exit' or press Ctrl+C to quit.`,
	RunE: runChat,
}

func init() {
	addChatFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&watchConfig, "watch", false, "reconnect servers when the config file changes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer l.Close()
	log := l.Zerolog()
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	addr := cfg.Metrics.Addr
	if metricsAddr != "" {
		addr = metricsAddr
	}
	if addr != "" {
		srv := serveMetrics(addr, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	store, err := openStore(cfg, log, m)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := newManager(log, m)
	defer mgr.Cleanup()

	report := mgr.ConnectAll(ctx, cfg.Servers)
	printConnectReport(out, report)

	orch, err := newOrchestrator(cfg, mgr, store, log, m)
	if err != nil {
		return err
	}

	repl := &REPL{
		In:        cmd.InOrStdin(),
		Out:       out,
		Agent:     orch,
		Store:     store,
		Servers:   mgr,
		Logger:    log.With().Str("component", "repl").Logger(),
		ExportDir: cfg.Context.ExportDir,
		Prompt:    isTerminal(os.Stdin),
	}

	if watchConfig {
		reload := make(chan struct{}, 1)
		path := config.NewLoader(cfgFile).GetConfigPath()
		w, err := config.NewWatcher(path, log, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Config watching disabled")
		} else {
			defer w.Stop()
			repl.Reload = reload
			repl.OnReload = reloadServers(mgr, out, log)
		}
	}

	return repl.Run(ctx)
}

func newOrchestrator(cfg *config.Config, router agent.ToolRouter, store agent.ContextStore, log zerolog.Logger, m *metrics.Metrics) (*agent.Orchestrator, error) {
	provider, err := agent.NewProvider(agent.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	gateway, err := agent.NewGateway(agent.GatewayConfig{
		Provider:   provider,
		MaxRetries: cfg.LLM.MaxRetries,
		Timeout:    cfg.LLM.Timeout,
		Logger:     log,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}
	return agent.NewOrchestrator(agent.Config{
		Router:        router,
		Gateway:       gateway,
		Store:         store,
		Logger:        log,
		Metrics:       m,
		Model:         cfg.LLM.Model,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
		ContextTurns:  cfg.Agent.ContextTurns,
		ToolTimeout:   cfg.Agent.ToolTimeout,
	})
}

// reloadServers re-reads the config file and reconciles the sessions with
// its server list. A config that fails to load leaves the sessions alone.
func reloadServers(mgr *session.Manager, out io.Writer, log zerolog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		next, err := config.Load(cfgFile)
		if err != nil {
			log.Error().Err(err).Msg("Config reload failed, keeping current servers")
			fmt.Fprintf(out, "\nConfig reload failed: %v\n", err)
			return
		}
		log.Info().Int("servers", len(next.Servers)).Msg("Config changed, reconciling servers")
		fmt.Fprintln(out, "\nConfig changed, reconnecting servers.")
		printConnectReport(out, mgr.Reconcile(ctx, next.Servers))
	}
}

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string, m *metrics.Metrics, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	return srv
}
