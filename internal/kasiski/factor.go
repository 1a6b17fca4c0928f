package kasiski

import "sort"

// PrimePower is one term of a factorization.
type PrimePower struct {
	Prime    int
	Exponent int
}

// Tally accumulates how the gaps of a text divide by one prime.
type Tally struct {
	Prime int `json:"prime" yaml:"prime"`
	// Votes counts the gaps divisible by Prime.
	Votes int `json:"votes" yaml:"votes"`
	// Total sums the multiplicity of Prime over those gaps.
	Total int `json:"total" yaml:"total"`
}

// Ratio is the share of repeat events that voted for the prime.
func (t Tally) Ratio(events int) float64 {
	if events == 0 {
		return 0
	}
	return float64(t.Votes) / float64(events)
}

// Factorizer factors gaps by trial division over a fixed prime table.
type Factorizer struct {
	primes []int
	limit  int
}

// NewFactorizer builds a factorizer whose table holds the primes up to
// maxPrime.
func NewFactorizer(maxPrime int) *Factorizer {
	return &Factorizer{primes: Primes(maxPrime), limit: maxPrime}
}

// Limit returns the prime table bound.
func (f *Factorizer) Limit() int { return f.limit }

// Factor returns the prime factorization of n in ascending prime order.
// Values below 2 have no factors. A prime factor above the table bound is
// reported as a *FactorError.
func (f *Factorizer) Factor(n int) ([]PrimePower, error) {
	var out []PrimePower
	x := n
	for _, p := range f.primes {
		if p*p > x {
			break
		}
		if x%p != 0 {
			continue
		}
		e := 0
		for x%p == 0 {
			x /= p
			e++
		}
		out = append(out, PrimePower{Prime: p, Exponent: e})
	}
	if x > 1 {
		if x > f.limit {
			return nil, &FactorError{Gap: n, Factor: x, Limit: f.limit}
		}
		out = append(out, PrimePower{Prime: x, Exponent: 1})
	}
	return out, nil
}

// Vote factors every gap and tallies, per prime, how many gaps it divides
// and its summed multiplicity. Gaps of 0 and 1 are skipped. The tallies are
// returned in ascending prime order.
func (f *Factorizer) Vote(gaps []int) ([]Tally, error) {
	byPrime := make(map[int]*Tally)
	for _, g := range gaps {
		if g < 2 {
			continue
		}
		factors, err := f.Factor(g)
		if err != nil {
			return nil, err
		}
		for _, pp := range factors {
			t, ok := byPrime[pp.Prime]
			if !ok {
				t = &Tally{Prime: pp.Prime}
				byPrime[pp.Prime] = t
			}
			t.Votes++
			t.Total += pp.Exponent
		}
	}

	tallies := make([]Tally, 0, len(byPrime))
	for _, t := range byPrime {
		tallies = append(tallies, *t)
	}
	sort.Slice(tallies, func(i, j int) bool {
		return tallies[i].Prime < tallies[j].Prime
	})
	return tallies, nil
}
