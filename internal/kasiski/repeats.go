package kasiski

import "kasiski/internal/textnorm"

const (
	// WindowSize is the length of the substrings tracked for repeats.
	WindowSize = 3

	// absent fills the last window slot at the tail of the text.
	absent = 26
	radix  = 27
	slots  = radix * radix * radix
)

// Entry describes one distinct window value and the gaps between its
// consecutive occurrences.
type Entry struct {
	Value int
	First int
	Last  int
	Gaps  []int
}

// Substring renders the window value, showing the tail sentinel as '_'.
func (e Entry) Substring() string {
	b := []byte{
		byte(e.Value / (radix * radix)),
		byte(e.Value / radix % radix),
		byte(e.Value % radix),
	}
	for i, c := range b {
		if c == absent {
			b[i] = '_'
		} else {
			b[i] = 'a' + c
		}
	}
	return string(b)
}

// Repeats is the outcome of scanning a text for repeated windows.
type Repeats struct {
	// Entries holds every distinct window in first-seen order.
	Entries []Entry
	// Events is the total number of gaps recorded.
	Events int
}

// Distinct returns the number of windows seen more than once.
func (r Repeats) Distinct() int {
	n := 0
	for _, e := range r.Entries {
		if len(e.Gaps) > 0 {
			n++
		}
	}
	return n
}

// Gaps returns every recorded gap, grouped by entry in first-seen order.
func (r Repeats) Gaps() []int {
	gaps := make([]int, 0, r.Events)
	for _, e := range r.Entries {
		gaps = append(gaps, e.Gaps...)
	}
	return gaps
}

func windowValue(a, b, c byte) int {
	return int(a)*radix*radix + int(b)*radix + int(c)
}

// FindRepeats slides a window over text. Windows start at every position up
// to len(text)-2; the final window pairs the last two letters with the absent
// sentinel. Texts shorter than two letters yield no windows.
func FindRepeats(text textnorm.Text) Repeats {
	var r Repeats
	n := len(text)
	if n < 2 {
		return r
	}

	// index[v] is one past the entry position for window value v.
	index := make([]int32, slots)
	for i := 0; i < n-1; i++ {
		c := byte(absent)
		if i+2 < n {
			c = text[i+2]
		}
		v := windowValue(text[i], text[i+1], c)

		if slot := index[v]; slot != 0 {
			e := &r.Entries[slot-1]
			e.Gaps = append(e.Gaps, i-e.Last)
			e.Last = i
			r.Events++
			continue
		}
		r.Entries = append(r.Entries, Entry{Value: v, First: i, Last: i})
		index[v] = int32(len(r.Entries))
	}
	return r
}
