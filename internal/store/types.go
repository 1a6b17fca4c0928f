// Package store provides SQLite-based history of analysis runs for kasiski.
package store

import (
	"time"

	"kasiski/internal/kasiski"
)

// Source values recorded with each run.
const (
	SourceStdin = "stdin"
	SourceFile  = "file"
	SourceHTTP  = "http"
	SourceWatch = "watch"
)

// Run is one recorded analysis.
type Run struct {
	ID           int64
	CreatedAt    time.Time
	Source       string
	Path         string
	Table        string
	Fingerprint  [32]byte
	Letters      int
	RepeatEvents int
	KeyLength    int
	Key          string
	Degenerate   bool
	Threshold    float64
	MaxPrime     int
	Factors      []Factor
	RecordHash   [32]byte
}

// Factor is one prime that contributed to a run's key length.
type Factor struct {
	Prime    int
	Exponent int
	Votes    int
	Total    int
}

// Stats summarizes the store.
type Stats struct {
	Runs       int
	Degenerate int
	Tables     map[string]int
}

// NewRun builds a run record for an analysis result.
func NewRun(res *kasiski.Result, source, path string, ciphertext []byte) *Run {
	r := &Run{
		Source:       source,
		Path:         path,
		Table:        res.Table,
		Fingerprint:  Fingerprint(ciphertext),
		Letters:      res.Letters,
		RepeatEvents: res.RepeatEvents,
		KeyLength:    res.KeyLength,
		Key:          res.Key,
		Degenerate:   res.Degenerate,
		Threshold:    res.Threshold,
		MaxPrime:     res.MaxPrime,
	}
	for _, f := range res.Factors {
		r.Factors = append(r.Factors, Factor{
			Prime:    f.Prime,
			Exponent: f.Exponent,
			Votes:    f.Votes,
			Total:    f.Total,
		})
	}
	return r
}
