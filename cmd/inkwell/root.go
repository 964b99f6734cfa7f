package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell"
	"github.com/aretw0/inkwell/internal/platform"
)

var (
	verbose    bool
	configPath string
	stateDir   string
	scratchBE  string
	scratchDSN string
	notifierBE string
	notifyAddr string
	channel    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "A headless markdown notepad with autosave and cross-instance sync",
	Long: `Inkwell keeps one markdown document in sync between a scratch slot,
an optional file on disk and every other running instance.
Edits are saved after a short idle delay; external changes to the file are
picked up by polling, and conflicting changes are flagged instead of lost.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default: inkwell.yaml above the working directory)")
	flags.StringVar(&stateDir, "state-dir", "", "Directory for local scratch backends")
	flags.StringVar(&scratchBE, "scratch", "", "Scratch backend: file, sqlite, bolt, postgres, redis")
	flags.StringVar(&scratchDSN, "scratch-dsn", "", "Postgres DSN or redis address for the scratch backend")
	flags.StringVar(&notifierBE, "notifier", "", "Sync backend: none, broadcast, redis, ws")
	flags.StringVar(&notifyAddr, "notifier-addr", "", "Redis address or relay URL for the sync backend")
	flags.StringVar(&channel, "channel", "", "Sync channel name")
}

// sessionOptions merges the config file with explicitly set flags; flags win.
func sessionOptions(cmd *cobra.Command, extra ...inkwell.Option) ([]inkwell.Option, error) {
	opts := []inkwell.Option{inkwell.WithLogger(slog.Default())}

	path := configPath
	if path == "" {
		found, err := inkwell.FindConfig(".")
		if err != nil && !errors.Is(err, platform.ErrRootNotFound) {
			return nil, err
		}
		path = found
	}
	if path != "" {
		fc, err := inkwell.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		slog.Debug("loaded config", "path", path)
		opts = append(opts, fc.Options()...)
	}

	flags := cmd.Flags()
	if flags.Changed("state-dir") {
		opts = append(opts, inkwell.WithStateDir(stateDir))
	}
	if flags.Changed("scratch") {
		opts = append(opts, inkwell.WithScratchBackend(scratchBE))
	}
	if flags.Changed("scratch-dsn") {
		opts = append(opts, inkwell.WithScratchDSN(scratchDSN))
	}
	if flags.Changed("notifier") {
		opts = append(opts, inkwell.WithNotifierBackend(notifierBE))
	}
	if flags.Changed("notifier-addr") {
		opts = append(opts, inkwell.WithNotifierAddr(notifyAddr))
	}
	if flags.Changed("channel") {
		opts = append(opts, inkwell.WithChannel(channel))
	}
	return append(opts, extra...), nil
}

// openRuntime builds and starts a session.
func openRuntime(ctx context.Context, cmd *cobra.Command, extra ...inkwell.Option) (*inkwell.Runtime, error) {
	opts, err := sessionOptions(cmd, extra...)
	if err != nil {
		return nil, err
	}
	rt, err := inkwell.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := rt.Session.Start(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func closeRuntime(ctx context.Context, rt *inkwell.Runtime) {
	if err := rt.Session.Stop(ctx); err != nil {
		slog.Error("failed to stop session", "error", err)
	}
	if err := rt.Close(); err != nil {
		slog.Error("failed to release backends", "error", err)
	}
}
