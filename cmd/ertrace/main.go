// Command ertrace exercises the ertrace pools from the command line: it
// renders a sample trace, stress-tests a pool and prints the effective
// configuration.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/xgx-io/ertrace"
	"github.com/xgx-io/ertrace/internal/config"
	"github.com/xgx-io/ertrace/internal/logging"
)

// app is the state shared by every subcommand once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	logDev     bool
	colorMode  string

	cfg config.File
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&app{log: zap.NewNop()})
}

func newRootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ertrace",
		Short:         "Error return tracing toolkit",
		Long:          `ertrace renders error return traces and load-tests the node pools behind them`,
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (.toml, .yaml or .yml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&a.logDev, "log-dev", false, "verbose human-readable console logs (debug level unless --log-level is set)")
	root.PersistentFlags().StringVar(&a.colorMode, "color", "auto", "colorize output (auto|on|off)")

	root.AddCommand(newDemoCmd(a))
	root.AddCommand(newStressCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-dev") {
		if a.logDev {
			dev := logging.DevelopmentConfig()
			if len(cfg.Log.OutputPaths) > 0 {
				dev.OutputPaths = cfg.Log.OutputPaths
			}
			cfg.Log = dev
		} else {
			cfg.Log.Development = false
		}
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(a.colorMode) {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("invalid --color %q (expected auto|on|off)", a.colorMode)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log.Named("ertrace")
	return nil
}

// newPool builds the pool described by cfg with the CLI logger attached.
func (a *app) newPool(cfg ertrace.Config) (ertrace.Pool, error) {
	return cfg.NewPool(ertrace.WithLogger(a.log.Named("pool")))
}

// useColor resolves --color against the command's output stream.
func (a *app) useColor(cmd *cobra.Command) bool {
	switch strings.ToLower(a.colorMode) {
	case "on":
		return true
	case "off":
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && isTerminal(f)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
