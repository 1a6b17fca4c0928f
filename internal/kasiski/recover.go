package kasiski

import (
	"math"

	"kasiski/internal/freq"
	"kasiski/internal/textnorm"
)

// Shift is the recovered key letter for one coset.
type Shift struct {
	Coset    int     `json:"coset" yaml:"coset"`
	Size     int     `json:"size" yaml:"size"`
	Shift    int     `json:"shift" yaml:"shift"`
	Letter   string  `json:"letter" yaml:"letter"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// CosetFrequencies returns the relative letter frequencies of the letters at
// positions p with p mod keyLen == index, and how many such letters exist.
func CosetFrequencies(text textnorm.Text, keyLen, index int) ([freq.AlphabetSize]float64, int) {
	var counts [freq.AlphabetSize]int
	n := 0
	for p := index; p < len(text); p += keyLen {
		counts[text[p]]++
		n++
	}

	var obs [freq.AlphabetSize]float64
	if n == 0 {
		return obs, 0
	}
	for k, c := range counts {
		obs[k] = float64(c) / float64(n)
	}
	return obs, n
}

// Correlation returns sum_k ref[k] * obs[(k+s) mod 26].
func Correlation(ref freq.Table, obs [freq.AlphabetSize]float64, s int) float64 {
	var c float64
	for k := 0; k < freq.AlphabetSize; k++ {
		c += ref.Freqs[k] * obs[(k+s)%freq.AlphabetSize]
	}
	return c
}

// BestShift returns the shift whose correlation lies closest to the
// table's self-correlation. Ties go to the smallest shift.
func BestShift(ref freq.Table, obs [freq.AlphabetSize]float64) (int, float64) {
	target := ref.SelfCorrelation()
	best, bestDist := 0, math.Inf(1)
	for s := 0; s < freq.AlphabetSize; s++ {
		d := math.Abs(target - Correlation(ref, obs, s))
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, bestDist
}

// RecoverKey finds one shift per coset for a key of length keyLen.
func RecoverKey(text textnorm.Text, keyLen int, ref freq.Table) ([]Shift, error) {
	if keyLen < 1 {
		return nil, &CosetError{Index: 0, KeyLength: keyLen, TextLength: len(text)}
	}
	shifts := make([]Shift, 0, keyLen)
	for i := 0; i < keyLen; i++ {
		obs, n := CosetFrequencies(text, keyLen, i)
		if n == 0 {
			return nil, &CosetError{Index: i, KeyLength: keyLen, TextLength: len(text)}
		}
		s, d := BestShift(ref, obs)
		shifts = append(shifts, Shift{
			Coset:    i,
			Size:     n,
			Shift:    s,
			Letter:   string(rune('a' + s)),
			Distance: d,
		})
	}
	return shifts, nil
}

// KeyString joins the shift letters into the lowercase key.
func KeyString(shifts []Shift) string {
	b := make([]byte, len(shifts))
	for i, s := range shifts {
		b[i] = byte('a' + s.Shift)
	}
	return string(b)
}
