package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Vex788/zeus-trading-bot/internal/api"
	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/di"
	"github.com/Vex788/zeus-trading-bot/internal/logging"
)

const defaultServer = "http://localhost:8080"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zeus",
		Short: "Zeus - adaptive decision and risk engine",
		Long: `Zeus scores market snapshots, learns from its own predictions and
routes approved trades to a virtual ledger or a live exchange account.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCtlCmd())

	rootCmd.PersistentFlags().String("config", "", "Configuration file path")

	return rootCmd
}

// newRunCmd starts the engine, the HTTP API and the background loops.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, runOverrides(cmd))
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("mode", "", "Trading mode (SHADOW or PRODUCTION)")
	cmd.Flags().StringSlice("pairs", nil, "Trading pairs, e.g. BTC-USDT,ETH-USDT")
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().Bool("auto-start", false, "Start trading immediately")

	return cmd
}

// runOverrides applies only the flags the user actually set.
func runOverrides(cmd *cobra.Command) func(*config.Config) {
	flags := cmd.Flags()
	return func(cfg *config.Config) {
		if flags.Changed("mode") {
			v, _ := flags.GetString("mode")
			mode, err := config.ParseMode(v)
			if err != nil {
				// left as given so Validate reports it
				mode = config.Mode(v)
			}
			cfg.Mode = mode
		}
		if flags.Changed("pairs") {
			cfg.TradingPairs, _ = flags.GetStringSlice("pairs")
		}
		if flags.Changed("addr") {
			cfg.Server.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("auto-start") {
			cfg.Engine.AutoStart, _ = flags.GetBool("auto-start")
		}
	}
}

func runServer(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	_, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	log.Info().Strs("pairs", cfg.TradingPairs).Str("mode", string(cfg.Mode)).Msg("starting bot")
	return app.Run(ctx)
}

// newCtlCmd talks to a running instance over its HTTP API.
func newCtlCmd() *cobra.Command {
	ctlCmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running engine",
	}
	ctlCmd.PersistentFlags().String("server", defaultServer, "Engine API base URL")
	ctlCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")

	ctlCmd.AddCommand(
		ctlAction("start", "Start trading", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.Start(ctx)
		}),
		ctlAction("stop", "Stop trading", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.Stop(ctx)
		}),
		ctlAction("pause", "Pause trading", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.Pause(ctx)
		}),
		ctlAction("resume", "Resume trading", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.Resume(ctx)
		}),
		ctlAction("status", "Show engine status", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.Status(ctx)
		}),
		ctlAction("portfolio", "Show portfolio valuation", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.Portfolio(ctx)
		}),
		ctlAction("risk", "Show risk status", func(ctx context.Context, c *api.Client, _ []string) (any, error) {
			return c.RiskStatus(ctx)
		}),
		newModeCmd(),
		newLearningCmd(),
		newTradesCmd(),
	)
	return ctlCmd
}

type ctlFunc func(ctx context.Context, c *api.Client, args []string) (any, error)

func ctlAction(use, short string, fn ctlFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  ctlRunE(fn),
	}
}

func ctlRunE(fn ctlFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out, err := fn(ctx, api.NewClient(server, timeout), args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [SHADOW|PRODUCTION]",
		Short: "Switch the trading mode",
		Args:  cobra.ExactArgs(1),
		RunE: ctlRunE(func(ctx context.Context, c *api.Client, args []string) (any, error) {
			mode, err := config.ParseMode(args[0])
			if err != nil {
				return nil, err
			}
			return c.SwitchMode(ctx, mode)
		}),
	}
}

func newLearningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learning [PAIR]",
		Short: "Show learned parameters for a pair",
		Args:  cobra.ExactArgs(1),
		RunE: ctlRunE(func(ctx context.Context, c *api.Client, args []string) (any, error) {
			return c.Learning(ctx, args[0])
		}),
	}
}

func newTradesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List recent trades",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Int("limit", 20, "Number of trades to return")
	cmd.RunE = ctlRunE(func(ctx context.Context, c *api.Client, _ []string) (any, error) {
		limit, _ := cmd.Flags().GetInt("limit")
		return c.Trades(ctx, limit)
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}
