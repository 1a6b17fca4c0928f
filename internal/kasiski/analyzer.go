// Package kasiski recovers the key of repeating-key substitution ciphertext.
//
// The pipeline runs in stages:
//   - normalize the input to letter codes
//   - find repeated three-letter windows and the gaps between them
//   - factor the gaps and let each prime vote
//   - build the key length from the primes that clear the vote threshold
//   - recover one key letter per coset by frequency correlation
package kasiski

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"kasiski/internal/freq"
	"kasiski/internal/textnorm"
)

// MinLetters is the shortest text that can be analyzed.
const MinLetters = WindowSize

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTable sets the reference frequency table.
func WithTable(t freq.Table) Option {
	return func(a *Analyzer) { a.table = t }
}

// WithThreshold sets the vote ratio a prime must exceed.
func WithThreshold(th float64) Option {
	return func(a *Analyzer) { a.threshold = th }
}

// WithMaxPrime sets the prime table bound.
func WithMaxPrime(n int) Option {
	return func(a *Analyzer) { a.maxPrime = n }
}

// WithRounding sets how average multiplicities become exponents.
func WithRounding(r Rounding) Option {
	return func(a *Analyzer) { a.rounding = r }
}

// WithFoldAccents folds diacritics before normalization.
func WithFoldAccents(fold bool) Option {
	return func(a *Analyzer) { a.fold = fold }
}

// WithLogger sets the logger for stage diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// Analyzer runs the key recovery pipeline. It is immutable after New and
// safe for concurrent use.
type Analyzer struct {
	table      freq.Table
	threshold  float64
	maxPrime   int
	rounding   Rounding
	fold       bool
	logger     *slog.Logger
	factorizer *Factorizer
}

// New builds an Analyzer. Defaults: English table, threshold 0.5, primes up
// to 65535, floor rounding, no accent folding.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		table:     freq.English,
		threshold: DefaultThreshold,
		maxPrime:  DefaultMaxPrime,
		rounding:  RoundFloor,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.threshold <= 0 || a.threshold >= 1 {
		return nil, fmt.Errorf("%w: threshold %v must lie in (0,1)", ErrInvalidOption, a.threshold)
	}
	if a.maxPrime < MinMaxPrime {
		return nil, fmt.Errorf("%w: max prime %d is below %d", ErrInvalidOption, a.maxPrime, MinMaxPrime)
	}
	if a.table.Sum() <= 0 {
		return nil, fmt.Errorf("%w: empty frequency table", ErrInvalidOption)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a.factorizer = NewFactorizer(a.maxPrime)
	return a, nil
}

// Table returns the reference table in use.
func (a *Analyzer) Table() freq.Table { return a.table }

// Threshold returns the vote threshold in use.
func (a *Analyzer) Threshold() float64 { return a.threshold }

// MaxPrime returns the prime table bound in use.
func (a *Analyzer) MaxPrime() int { return a.maxPrime }

// ForTable returns a copy of a that scores cosets against t.
func (a *Analyzer) ForTable(t freq.Table) *Analyzer {
	c := *a
	c.table = t
	return &c
}

// Analyze reads ciphertext from r to EOF and recovers the key.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader) (*Result, error) {
	text, err := textnorm.Normalize(r, textnorm.Options{FoldAccents: a.fold})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	return a.AnalyzeText(ctx, text)
}

// AnalyzeText recovers the key of already normalized text.
func (a *Analyzer) AnalyzeText(ctx context.Context, text textnorm.Text) (*Result, error) {
	if len(text) < MinLetters {
		return nil, fmt.Errorf("%w: %w: %d letters, need at least %d",
			ErrInput, ErrTooShort, len(text), MinLetters)
	}
	log := a.logger.With(slog.Int("letters", len(text)), slog.String("table", a.table.Name))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reps := FindRepeats(text)
	log.Debug("repeats found", "events", reps.Events, "distinct", reps.Distinct())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tallies, err := a.factorizer.Vote(reps.Gaps())
	if err != nil {
		return nil, fmt.Errorf("factor gaps: %w", err)
	}
	log.Debug("gaps factored", "primes", len(tallies))

	res := ResolveKeyLength(tallies, reps.Events, a.threshold, a.rounding)
	if res.Degenerate {
		log.Warn(ErrDegenerateKeyLength.Error(), "events", reps.Events)
	} else {
		log.Debug("key length resolved", "key_length", res.KeyLength, "factors", len(res.Factors))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shifts, err := RecoverKey(text, res.KeyLength, a.table)
	if err != nil {
		return nil, fmt.Errorf("recover key: %w", err)
	}

	return &Result{
		Key:             KeyString(shifts),
		KeyLength:       res.KeyLength,
		Table:           a.table.Name,
		Letters:         len(text),
		RepeatEvents:    reps.Events,
		DistinctRepeats: reps.Distinct(),
		Tallies:         tallies,
		Factors:         res.Factors,
		Shifts:          shifts,
		Degenerate:      res.Degenerate,
		Threshold:       a.threshold,
		MaxPrime:        a.maxPrime,
		Rounding:        a.rounding.String(),
	}, nil
}
