package kasiski

import "sort"

// Result is the outcome of one analysis run.
type Result struct {
	Key             string   `json:"key" yaml:"key"`
	KeyLength       int      `json:"key_length" yaml:"key_length"`
	Table           string   `json:"table" yaml:"table"`
	Letters         int      `json:"letters" yaml:"letters"`
	RepeatEvents    int      `json:"repeat_events" yaml:"repeat_events"`
	DistinctRepeats int      `json:"distinct_repeats" yaml:"distinct_repeats"`
	Tallies         []Tally  `json:"-" yaml:"-"`
	Factors         []Factor `json:"factors" yaml:"factors"`
	Shifts          []Shift  `json:"shifts" yaml:"shifts"`
	Degenerate      bool     `json:"degenerate" yaml:"degenerate"`
	Threshold       float64  `json:"threshold" yaml:"threshold"`
	MaxPrime        int      `json:"max_prime" yaml:"max_prime"`
	Rounding        string   `json:"rounding" yaml:"rounding"`
}

// TopTallies returns up to n tallies with the most votes, ties broken by
// the smaller prime.
func (r *Result) TopTallies(n int) []Tally {
	out := make([]Tally, len(r.Tallies))
	copy(out, r.Tallies)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Votes > out[j].Votes
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
