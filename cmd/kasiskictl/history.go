package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"kasiski/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 && f != report.FormatJSON && f != report.FormatYAML {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			return report.NewReportGenerator(f).GenerateRuns(runs, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml")
	return cmd
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}

func newShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(id)
			if err != nil {
				return fmt.Errorf("run %d: %w", id, err)
			}
			return report.NewReportGenerator(f).GenerateRun(*run, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: key, text, json, yaml")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRun(id); err != nil {
				return fmt.Errorf("run %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %d\n", id)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and history statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := a.cfg

			fmt.Fprintln(out, "=== kasiski Status ===")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Config:          %s\n", a.resolvedConfigPath())
			fmt.Fprintf(out, "Language:        %s\n", cfg.Analysis.Language)
			if cfg.Analysis.TablePath != "" {
				fmt.Fprintf(out, "Table file:      %s\n", cfg.Analysis.TablePath)
			}
			fmt.Fprintf(out, "Threshold:       %.2f\n", cfg.Analysis.Threshold)
			fmt.Fprintf(out, "Max prime:       %d\n", cfg.Analysis.MaxPrime)
			fmt.Fprintf(out, "Rounding:        %s\n", cfg.Analysis.Rounding)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "History:         %s\n", cfg.History.Path)
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "  (recording disabled)")
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  Runs:          %d\n", stats.Runs)
			fmt.Fprintf(out, "  Degenerate:    %d\n", stats.Degenerate)
			tables := make([]string, 0, len(stats.Tables))
			for name := range stats.Tables {
				tables = append(tables, name)
			}
			sort.Strings(tables)
			for _, name := range tables {
				fmt.Fprintf(out, "  %-14s %d\n", name+":", stats.Tables[name])
			}

			corrupted, err := st.VerifyAllRuns()
			if err != nil {
				return err
			}
			if len(corrupted) == 0 {
				fmt.Fprintln(out, "  Integrity:     ok")
			} else {
				fmt.Fprintf(out, "  Integrity:     FAILED for runs %v\n", corrupted)
			}
			return nil
		},
	}
}
