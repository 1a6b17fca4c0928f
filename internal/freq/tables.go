// Package freq holds reference letter-frequency tables for the 26-letter
// Latin alphabet and loads user-supplied tables from disk.
package freq

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AlphabetSize is the number of letters a table covers.
const AlphabetSize = 26

var (
	ErrUnknownLanguage = errors.New("freq: unknown language")
	ErrInvalidTable    = errors.New("freq: invalid frequency table")
)

// Table is an immutable reference distribution indexed by letter code
// (0 = 'a').
type Table struct {
	Name  string
	Freqs [AlphabetSize]float64
}

// English is the relative letter frequency of English text.
var English = Table{
	Name: "english",
	Freqs: [AlphabetSize]float64{
		0.082, 0.015, 0.028, 0.043, 0.13, 0.022, 0.02, 0.061, 0.07, 0.0015,
		0.0077, 0.04, 0.024, 0.067, 0.075, 0.019, 0.00095, 0.06, 0.063, 0.091,
		0.028, 0.0098, 0.024, 0.0015, 0.02, 0.00074,
	},
}

// Portuguese is the relative letter frequency of Portuguese text with
// diacritics folded to their base letters.
var Portuguese = Table{
	Name: "portuguese",
	Freqs: [AlphabetSize]float64{
		0.1463, 0.0104, 0.0388, 0.0499, 0.1257, 0.0102, 0.013, 0.0128, 0.0618, 0.004,
		0.0002, 0.0278, 0.0474, 0.0505, 0.1073, 0.0252, 0.012, 0.0653, 0.0781, 0.0434,
		0.0463, 0.0167, 0.0001, 0.0021, 0.0001, 0.0047,
	},
}

var builtin = map[string]Table{
	"english":    English,
	"en":         English,
	"e":          English,
	"portuguese": Portuguese,
	"pt":         Portuguese,
	"p":          Portuguese,
}

// Lookup returns the built-in table for a language name or alias.
func Lookup(name string) (Table, error) {
	t, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}
	return t, nil
}

// Names lists the canonical names of the built-in tables.
func Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range builtin {
		if !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}

// SelfCorrelation returns the sum of squared frequencies, the correlation a
// correctly aligned sample is expected to reach.
func (t Table) SelfCorrelation() float64 {
	var sum float64
	for k := 0; k < AlphabetSize; k++ {
		sum += t.Freqs[k] * t.Freqs[k]
	}
	return sum
}

// Sum returns the total mass of the table.
func (t Table) Sum() float64 {
	var sum float64
	for _, f := range t.Freqs {
		sum += f
	}
	return sum
}

// Normalized returns a copy of t scaled so its frequencies sum to 1.
func (t Table) Normalized() (Table, error) {
	sum := t.Sum()
	if sum <= 0 {
		return Table{}, fmt.Errorf("%w: frequencies sum to zero", ErrInvalidTable)
	}
	out := Table{Name: t.Name}
	for i, f := range t.Freqs {
		out.Freqs[i] = f / sum
	}
	return out, nil
}

// Letters returns the table as a letter-keyed map.
func (t Table) Letters() map[string]float64 {
	m := make(map[string]float64, AlphabetSize)
	for i, f := range t.Freqs {
		m[string(rune('a'+i))] = f
	}
	return m
}
