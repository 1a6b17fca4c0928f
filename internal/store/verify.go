package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// computeRecordHash binds the stored fields of a run together so later
// edits to the row can be detected.
func computeRecordHash(r *Run) [32]byte {
	h, _ := blake2b.New256(nil)

	var buf [8]byte
	writeInt := func(v int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}

	h.Write([]byte("kasiski-run-v1"))
	writeInt(r.CreatedAt.UnixNano())
	writeString(r.Source)
	writeString(r.Path)
	writeString(r.Table)
	h.Write(r.Fingerprint[:])
	writeInt(int64(r.Letters))
	writeInt(int64(r.RepeatEvents))
	writeInt(int64(r.KeyLength))
	writeString(r.Key)
	if r.Degenerate {
		writeInt(1)
	} else {
		writeInt(0)
	}
	writeInt(int64(math.Float64bits(r.Threshold)))
	writeInt(int64(r.MaxPrime))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyRunIntegrity checks a run against its stored record hash.
func VerifyRunIntegrity(r *Run) error {
	computed := computeRecordHash(r)
	if !bytes.Equal(computed[:], r.RecordHash[:]) {
		return fmt.Errorf("record hash mismatch for run %d: computed %x, stored %x",
			r.ID, computed, r.RecordHash)
	}
	if r.KeyLength != len(r.Key) {
		return fmt.Errorf("run %d: key length %d does not match key %q", r.ID, r.KeyLength, r.Key)
	}
	return nil
}

// VerifyAllRuns checks every run and returns the IDs that fail.
func (s *Store) VerifyAllRuns() ([]int64, error) {
	runs, err := s.ListRuns(0)
	if err != nil {
		return nil, err
	}

	var corrupted []int64
	for i := range runs {
		if err := VerifyRunIntegrity(&runs[i]); err != nil {
			corrupted = append(corrupted, runs[i].ID)
		}
	}
	return corrupted, nil
}
