package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/scanboard/internal/app"
	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/config"
	"github.com/dshills/scanboard/internal/trace"
)

// traceEpoch anchors trace offsets. Selections are reported as offsets too,
// so the value never shows in the output.
var traceEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type rootFlags struct {
	config   string
	board    string
	rules    string
	logLevel string
}

func (f *rootFlags) options() app.Options {
	return app.Options{
		ConfigPath: f.config,
		BoardPath:  f.board,
		RulesPath:  f.rules,
		LogLevel:   f.logLevel,
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "scanboard",
		Short:         "Switch scanning and dwell selection for AAC boards",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "configuration file (TOML)")
	root.PersistentFlags().StringVarP(&flags.board, "board", "b", "", "board catalogue (YAML)")
	root.PersistentFlags().StringVarP(&flags.rules, "rules", "r", "", "rule script (Lua)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd(flags), simulateCmd(flags), validateCmd(flags))
	return root
}

func runCmd(flags *rootFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Show the board in the terminal",
		Long: "Show the board in the terminal. Hover or click targets with the mouse;\n" +
			"space or enter acts as a single switch; q quits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return app.ErrNotTerminal
			}

			opts := flags.options()
			opts.Watch = watch
			opts.Interactive = true
			application, err := app.New(opts)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("create terminal: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.RunTerminal(ctx, screen)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", true, "reload when the config, board or rules change")
	return cmd
}

func simulateCmd(flags *rootFlags) *cobra.Command {
	var (
		tracePath string
		tail      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a raw event trace and print selections as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, closeIn, err := openTrace(cmd, tracePath)
			if err != nil {
				return err
			}
			defer closeIn()

			steps, err := trace.Parse(in, traceEpoch)
			if err != nil {
				return err
			}

			application, err := app.New(flags.options())
			if err != nil {
				return err
			}
			defer application.Shutdown()

			n, err := application.Simulate(steps, traceEpoch, tail, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d steps, %d selections\n", len(steps), n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tracePath, "trace", "t", "-", "trace file, - for standard input")
	cmd.Flags().DurationVar(&tail, "tail", time.Second, "time to run past the last step")
	return cmd
}

func openTrace(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func validateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and board catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg, err := config.Load(flags.config)
			if err != nil {
				return err
			}
			if flags.board != "" {
				cfg.Board.Catalogue = flags.board
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "config: %v\n", err)
			} else {
				fmt.Fprintln(out, "config: ok")
			}

			if cfg.Board.Catalogue == "" {
				return app.ErrNoCatalogue
			}
			cat, err := catalog.Load(cfg.Board.Catalogue)
			if err != nil {
				return err
			}
			s := cat.Summary()
			fmt.Fprintf(out, "board: %s: %d targets in %d groups, depth %d\n",
				cfg.Board.Catalogue, s.Targets, s.Groups, s.Depth)
			return nil
		},
	}
}

