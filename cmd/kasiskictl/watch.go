package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"kasiski/internal/kasiski"
	"kasiski/internal/report"
	"kasiski/internal/store"
	"kasiski/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		patterns     []string
		debounce     time.Duration
		skipExisting bool
		save         bool
		format       string
		count        int
	)

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Analyze ciphertext files as they appear in watched directories",
		Long: `Watch files and directories and analyze every matching file once it has
stopped changing. Paths default to watch.paths from the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.validConfig()
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				paths = cfg.Watch.Paths
			}
			if len(paths) == 0 {
				return errors.New("no paths to watch")
			}
			if !cmd.Flags().Changed("pattern") {
				patterns = cfg.Watch.IncludePatterns
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
			}

			analyzer, err := kasiski.FromConfig(cfg.Analysis, a.logger.Logger)
			if err != nil {
				return err
			}

			job := analyzeJob{
				analyzer: analyzer,
				gen:      report.NewReportGenerator(f).WithVerbose(a.verbose),
				out:      cmd.OutOrStdout(),
			}
			if !cmd.Flags().Changed("save") {
				save = cfg.History.Enabled
			}
			if save {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				job.store = st
			}

			w, err := watcher.New(watcher.Options{
				Paths:        paths,
				Patterns:     patterns,
				Debounce:     debounce,
				SkipExisting: skipExisting,
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				w.Stop()
				return err
			}
			defer w.Stop()

			log := a.logger.WithComponent("watch")
			log.Info("watching", "paths", paths, "patterns", patterns)

			ctx := cmd.Context()
			processed := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-w.Errors():
					log.Warn("watch error", "error", err)
				case ev := <-w.Events():
					if err := job.run(ctx, store.SourceWatch, ev.Path, ev.Data, true); err != nil {
						log.Warn("analysis failed", "path", ev.Path, "error", err)
					}
					processed++
					if count > 0 && processed >= count {
						return nil
					}
				}
			}
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVarP(&patterns, "pattern", "p", nil, "file name globs to analyze (default: watch.include_patterns)")
	fl.DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "how long a file must be unchanged before analysis")
	fl.BoolVar(&skipExisting, "skip-existing", false, "ignore files present at startup")
	fl.BoolVar(&save, "save", false, "record runs in history (default: history.enabled)")
	fl.StringVarP(&format, "format", "f", "key", "output format: key, text, json, yaml, markdown")
	fl.IntVar(&count, "count", 0, "exit after this many files (0 runs until interrupted)")
	return cmd
}
