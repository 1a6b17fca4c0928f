package kasiski

import (
	"fmt"
	"math"
	"strings"
)

// DefaultThreshold is the share of repeat events a prime must exceed to
// contribute to the key length.
const DefaultThreshold = 0.5

// maxKeyLength caps the product of selected prime powers.
const maxKeyLength = math.MaxInt32

// Rounding converts an average multiplicity into an integer exponent.
type Rounding int

const (
	// RoundFloor truncates the average multiplicity.
	RoundFloor Rounding = iota
	// RoundNearest rounds the average multiplicity half up.
	RoundNearest
)

// ParseRounding parses "floor" or "nearest".
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "floor":
		return RoundFloor, nil
	case "nearest", "round":
		return RoundNearest, nil
	default:
		return RoundFloor, fmt.Errorf("%w: unknown rounding %q", ErrInvalidOption, s)
	}
}

func (r Rounding) String() string {
	switch r {
	case RoundNearest:
		return "nearest"
	default:
		return "floor"
	}
}

func (r Rounding) exponent(total, votes int) int {
	if votes == 0 {
		return 0
	}
	if r == RoundNearest {
		return int(math.Floor(float64(total)/float64(votes) + 0.5))
	}
	return total / votes
}

// Factor is a prime that cleared the vote threshold.
type Factor struct {
	Prime    int     `json:"prime" yaml:"prime"`
	Exponent int     `json:"exponent" yaml:"exponent"`
	Votes    int     `json:"votes" yaml:"votes"`
	Total    int     `json:"total" yaml:"total"`
	Ratio    float64 `json:"ratio" yaml:"ratio"`
}

// Resolution is a key length estimate and the factors it was built from.
type Resolution struct {
	KeyLength  int
	Factors    []Factor
	Degenerate bool
}

// ResolveKeyLength multiplies prime^exponent over every tally whose vote
// ratio strictly exceeds threshold. With no such prime, or no events, the
// key length is 1 and the resolution is degenerate.
func ResolveKeyLength(tallies []Tally, events int, threshold float64, rounding Rounding) Resolution {
	res := Resolution{KeyLength: 1}
	if events == 0 {
		res.Degenerate = true
		return res
	}

	for _, t := range tallies {
		ratio := t.Ratio(events)
		if ratio <= threshold {
			continue
		}
		e := rounding.exponent(t.Total, t.Votes)
		res.Factors = append(res.Factors, Factor{
			Prime:    t.Prime,
			Exponent: e,
			Votes:    t.Votes,
			Total:    t.Total,
			Ratio:    ratio,
		})
		for i := 0; i < e; i++ {
			if res.KeyLength > maxKeyLength/t.Prime {
				res.KeyLength = maxKeyLength
				break
			}
			res.KeyLength *= t.Prime
		}
	}

	res.Degenerate = len(res.Factors) == 0
	return res
}
