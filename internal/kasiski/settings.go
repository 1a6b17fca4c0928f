package kasiski

import (
	"fmt"
	"log/slog"

	"kasiski/internal/config"
	"kasiski/internal/freq"
)

// LoadTable resolves the reference table named by the analysis settings. A
// table file takes precedence over the language name.
func LoadTable(ac config.AnalysisConfig) (freq.Table, error) {
	if ac.TablePath != "" {
		t, err := freq.LoadFile(ac.TablePath)
		if err != nil {
			return freq.Table{}, fmt.Errorf("load table: %w", err)
		}
		return t, nil
	}
	lang := ac.Language
	if lang == "" {
		lang = freq.English.Name
	}
	return freq.Lookup(lang)
}

// FromConfig builds an Analyzer from the analysis section of a config file.
// Zero values fall back to the package defaults.
func FromConfig(ac config.AnalysisConfig, logger *slog.Logger) (*Analyzer, error) {
	table, err := LoadTable(ac)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithTable(table),
		WithFoldAccents(ac.FoldAccents),
		WithLogger(logger),
	}
	if ac.Threshold != 0 {
		opts = append(opts, WithThreshold(ac.Threshold))
	}
	if ac.MaxPrime != 0 {
		opts = append(opts, WithMaxPrime(ac.MaxPrime))
	}
	if ac.Rounding != "" {
		r, err := ParseRounding(ac.Rounding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRounding(r))
	}
	return New(opts...)
}
