// Command kasiskictl is the management CLI for kasiski: batch analysis,
// run history, reference tables, the HTTP service, watch mode and config
// files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kasiski/internal/config"
	"kasiski/internal/logging"
	"kasiski/internal/store"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kasiskictl: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "kasiskictl",
		Short: "Manage kasiski analyses, history and services",
		Long: `kasiskictl recovers Vigenère keys in batch, keeps a history of past
analyses, serves the analyzer over HTTP and watches directories for new
ciphertext.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: platform config dir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging and detailed reports")

	root.AddCommand(
		newAnalyzeCmd(a),
		newHistoryCmd(a),
		newShowCmd(a),
		newDeleteCmd(a),
		newStatusCmd(a),
		newTablesCmd(),
		newServeCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) resolvedConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.FindConfigFile()
}

// setup loads the configuration and the logger. Validation is left to the
// commands so that "config validate" can report problems itself.
func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.resolvedConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	lc, err := logging.FromSettings(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	logger, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logger = logger
	logging.SetDefault(logger)
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		return a.logger.Close()
	}
	return nil
}

// validConfig returns the loaded configuration after validating it.
func (a *app) validConfig() (*config.Config, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return a.cfg, nil
}

// openStore opens the history database named in the configuration.
func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return st, nil
}
