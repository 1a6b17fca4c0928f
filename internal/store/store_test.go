package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kasiski/internal/kasiski"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(key string) *Run {
	return &Run{
		Source:       SourceStdin,
		Table:        "english",
		Fingerprint:  Fingerprint([]byte("ciphertext for " + key)),
		Letters:      8512,
		RepeatEvents: 700,
		KeyLength:    len(key),
		Key:          key,
		Threshold:    0.5,
		MaxPrime:     65535,
		Factors: []Factor{
			{Prime: 7, Exponent: 1, Votes: 420, Total: 430},
		},
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "history.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("lxfopv ef rnhr"))
	b := Fingerprint([]byte("lxfopv ef rnhr"))
	c := Fingerprint([]byte("lxfopv ef rnhs"))
	if a != b {
		t.Error("fingerprint should be deterministic")
	}
	if a == c {
		t.Error("different ciphertexts should not share a fingerprint")
	}
}

func TestInsertAndGetRun(t *testing.T) {
	s := openTestStore(t)

	run := sampleRun("bramble")
	run.Path = "/tmp/message.txt"
	id, err := s.InsertRun(run)
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if id == 0 || run.ID != id {
		t.Fatalf("unexpected id %d (run.ID %d)", id, run.ID)
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Key != "bramble" || got.KeyLength != 7 {
		t.Errorf("unexpected key: %s (%d)", got.Key, got.KeyLength)
	}
	if got.Path != "/tmp/message.txt" {
		t.Errorf("unexpected path: %s", got.Path)
	}
	if got.Fingerprint != run.Fingerprint {
		t.Error("fingerprint mismatch")
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("created at mismatch: %v vs %v", got.CreatedAt, run.CreatedAt)
	}
	if len(got.Factors) != 1 || got.Factors[0].Prime != 7 || got.Factors[0].Votes != 420 {
		t.Errorf("unexpected factors: %+v", got.Factors)
	}
	if err := VerifyRunIntegrity(got); err != nil {
		t.Errorf("fresh run should verify: %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRun(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	for i, key := range []string{"alpha", "beta", "gamma"} {
		run := sampleRun(key)
		run.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if _, err := s.InsertRun(run); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Key != "gamma" || runs[1].Key != "beta" {
		t.Errorf("expected newest first, got %s, %s", runs[0].Key, runs[1].Key)
	}

	all, err := s.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}

	n, err := s.CountRuns()
	if err != nil || n != 3 {
		t.Errorf("CountRuns = %d, %v", n, err)
	}
}

func TestFindByFingerprint(t *testing.T) {
	s := openTestStore(t)

	first := sampleRun("tide")
	second := sampleRun("tide")
	second.Table = "portuguese"
	other := sampleRun("merchant")
	for _, r := range []*Run{first, second, other} {
		if _, err := s.InsertRun(r); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	runs, err := s.FindByFingerprint(first.Fingerprint)
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != first.ID {
		t.Errorf("expected oldest first")
	}
}

func TestDeleteRun(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertRun(sampleRun("ferry"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRun(id); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := s.GetRun(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted run to be gone, got %v", err)
	}
	if err := s.DeleteRun(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	var factors int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM run_factors WHERE run_id = ?`, id).Scan(&factors); err != nil {
		t.Fatal(err)
	}
	if factors != 0 {
		t.Errorf("factors should cascade, %d left", factors)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	degenerate := sampleRun("a")
	degenerate.Degenerate = true
	degenerate.Factors = nil
	pt := sampleRun("sal")
	pt.Table = "portuguese"

	for _, r := range []*Run{sampleRun("key"), degenerate, pt} {
		if _, err := s.InsertRun(r); err != nil {
			t.Fatal(err)
		}
	}

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Runs != 3 || st.Degenerate != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.Tables["english"] != 2 || st.Tables["portuguese"] != 1 {
		t.Errorf("unexpected table counts: %v", st.Tables)
	}
}

func TestVerifyAllRunsDetectsTampering(t *testing.T) {
	s := openTestStore(t)

	good, err := s.InsertRun(sampleRun("anchor"))
	if err != nil {
		t.Fatal(err)
	}
	bad, err := s.InsertRun(sampleRun("parish"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.db.Exec(`UPDATE runs SET key = 'pariss' WHERE id = ?`, bad); err != nil {
		t.Fatal(err)
	}

	corrupted, err := s.VerifyAllRuns()
	if err != nil {
		t.Fatalf("VerifyAllRuns failed: %v", err)
	}
	if len(corrupted) != 1 || corrupted[0] != bad {
		t.Errorf("expected run %d to be flagged (good run %d), got %v", bad, good, corrupted)
	}
}

func TestNewRun(t *testing.T) {
	res := &kasiski.Result{
		Key:          "tide",
		KeyLength:    4,
		Table:        "english",
		Letters:      8512,
		RepeatEvents: 1200,
		Factors: []kasiski.Factor{
			{Prime: 2, Exponent: 2, Votes: 1100, Total: 2300, Ratio: 0.91},
		},
		Threshold: 0.5,
		MaxPrime:  65535,
	}
	ciphertext := []byte("mpgi xlmw")

	r := NewRun(res, SourceFile, "msg.enc", ciphertext)
	if r.Key != "tide" || r.KeyLength != 4 || r.Path != "msg.enc" || r.Source != SourceFile {
		t.Errorf("unexpected run: %+v", r)
	}
	if r.Fingerprint != Fingerprint(ciphertext) {
		t.Error("fingerprint does not match ciphertext")
	}
	if len(r.Factors) != 1 || r.Factors[0].Total != 2300 {
		t.Errorf("factors not copied: %+v", r.Factors)
	}

	s := openTestStore(t)
	id, err := s.InsertRun(r)
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Key != "tide" || len(got.Factors) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}
