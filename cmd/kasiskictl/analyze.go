package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kasiski/internal/config"
	"kasiski/internal/kasiski"
	"kasiski/internal/report"
	"kasiski/internal/store"
)

type analyzeFlags struct {
	format    string
	save      bool
	lang      string
	table     string
	threshold float64
	maxPrime  int
	rounding  string
	fold      bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Recover the key of ciphertext files, or stdin when none are given",
		Example: `  kasiskictl analyze message.enc
  kasiskictl analyze --lang portuguese --fold mensagem.enc
  kasiskictl analyze --format json --save=false < message.enc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(f.format)
			if err != nil {
				return err
			}

			// Flags override the config file.
			overrides := &config.Config{Analysis: config.AnalysisConfig{
				Language:    f.lang,
				TablePath:   f.table,
				Threshold:   f.threshold,
				MaxPrime:    f.maxPrime,
				Rounding:    f.rounding,
				FoldAccents: f.fold,
			}}
			cfg := config.Merge(a.cfg, overrides)
			if f.lang != "" && f.table == "" {
				cfg.Analysis.TablePath = ""
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			analyzer, err := kasiski.FromConfig(cfg.Analysis, a.logger.Logger)
			if err != nil {
				return err
			}

			save := cfg.History.Enabled
			if cmd.Flags().Changed("save") {
				save = f.save
			}
			var st *store.Store
			if save {
				if st, err = a.openStore(); err != nil {
					return err
				}
				defer st.Close()
			}

			job := analyzeJob{
				analyzer: analyzer,
				gen:      report.NewReportGenerator(format).WithVerbose(a.verbose),
				store:    st,
				out:      cmd.OutOrStdout(),
			}

			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				return job.run(cmd.Context(), store.SourceStdin, "", data, false)
			}

			labeled := len(args) > 1
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := job.run(cmd.Context(), store.SourceFile, path, data, labeled); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.format, "format", "f", "key", "output format: key, text, json, yaml, markdown")
	fl.BoolVar(&f.save, "save", false, "record runs in history (default: history.enabled)")
	fl.StringVarP(&f.lang, "lang", "l", "", "reference table: english, portuguese")
	fl.StringVar(&f.table, "table", "", "custom frequency table file")
	fl.Float64Var(&f.threshold, "threshold", 0, "vote ratio a prime must exceed")
	fl.IntVar(&f.maxPrime, "max-prime", 0, "largest prime used to factor gaps")
	fl.StringVar(&f.rounding, "rounding", "", "exponent rounding: floor, nearest")
	fl.BoolVar(&f.fold, "fold", false, "fold accented letters to their base letter")
	return cmd
}

type analyzeJob struct {
	analyzer *kasiski.Analyzer
	gen      *report.ReportGenerator
	store    *store.Store
	out      io.Writer
}

// run analyzes one input. Labeled output prefixes each result with its path.
func (j analyzeJob) run(ctx context.Context, source, path string, data []byte, labeled bool) error {
	res, err := j.analyzer.Analyze(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}

	if labeled {
		if j.gen.Format() == report.FormatKey {
			fmt.Fprintf(j.out, "%s: %s\n", path, res.Key)
		} else {
			fmt.Fprintf(j.out, "==> %s <==\n", path)
			if err := j.gen.Generate(res, j.out); err != nil {
				return err
			}
		}
	} else if err := j.gen.Generate(res, j.out); err != nil {
		return err
	}

	if j.store != nil {
		if _, err := j.store.InsertRun(store.NewRun(res, source, path, data)); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	return nil
}
