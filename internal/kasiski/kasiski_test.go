package kasiski

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"kasiski/internal/freq"
	"kasiski/internal/textnorm"
	"kasiski/internal/vigenere"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadHarbor(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "harbor.txt"))
	require.NoError(t, err)
	return string(data)
}

func encrypt(t *testing.T, plaintext, key string) string {
	t.Helper()
	ct, err := vigenere.Encode(plaintext, key)
	require.NoError(t, err)
	return ct
}

func newAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	a, err := New(opts...)
	require.NoError(t, err)
	return a
}

func TestFindRepeats(t *testing.T) {
	reps := FindRepeats(textnorm.FromString("abcabc"))

	require.Len(t, reps.Entries, 4)
	assert.Equal(t, 1, reps.Events)
	assert.Equal(t, 1, reps.Distinct())

	subs := make([]string, len(reps.Entries))
	for i, e := range reps.Entries {
		subs[i] = e.Substring()
	}
	assert.Equal(t, []string{"abc", "bca", "cab", "bc_"}, subs)
	assert.Equal(t, []int{3}, reps.Entries[0].Gaps)
	assert.Equal(t, 0, reps.Entries[0].First)
	assert.Equal(t, 3, reps.Entries[0].Last)
}

func TestFindRepeatsOverlapping(t *testing.T) {
	reps := FindRepeats(textnorm.FromString("aaaaa"))

	require.Len(t, reps.Entries, 2)
	assert.Equal(t, "aaa", reps.Entries[0].Substring())
	assert.Equal(t, []int{1, 1}, reps.Entries[0].Gaps)
	assert.Equal(t, "aa_", reps.Entries[1].Substring())
	assert.Equal(t, 2, reps.Events)
}

func TestFindRepeatsShortText(t *testing.T) {
	assert.Empty(t, FindRepeats(textnorm.FromString("a")).Entries)

	reps := FindRepeats(textnorm.FromString("ab"))
	require.Len(t, reps.Entries, 1)
	assert.Equal(t, "ab_", reps.Entries[0].Substring())
	assert.Zero(t, reps.Events)
}

func TestFindRepeatsGapsOrder(t *testing.T) {
	// "xyz" recurs at 0, 5 and 13.
	reps := FindRepeats(textnorm.FromString("xyzqaxyzbcdefxyz"))
	assert.Equal(t, []int{5, 8}, reps.Entries[0].Gaps)
	assert.Equal(t, []int{5, 8}, reps.Gaps()[:2])
}

func TestPrimes(t *testing.T) {
	small := Primes(100)
	assert.Len(t, small, 25)
	assert.Equal(t, []int{2, 3, 5, 7, 11}, small[:5])
	assert.Equal(t, 97, small[len(small)-1])

	all := Primes(DefaultMaxPrime)
	assert.Len(t, all, 6542)
	assert.Equal(t, 65521, all[len(all)-1])

	assert.Empty(t, Primes(1))
}

func TestFactor(t *testing.T) {
	f := NewFactorizer(DefaultMaxPrime)

	tests := []struct {
		n    int
		want []PrimePower
	}{
		{0, nil},
		{1, nil},
		{2, []PrimePower{{2, 1}}},
		{360, []PrimePower{{2, 3}, {3, 2}, {5, 1}}},
		{97, []PrimePower{{97, 1}}},
		{2 * 65521, []PrimePower{{2, 1}, {65521, 1}}},
	}

	for _, tt := range tests {
		got, err := f.Factor(tt.n)
		require.NoError(t, err, "n=%d", tt.n)
		assert.Equal(t, tt.want, got, "n=%d", tt.n)
	}
}

func TestFactorUnsupported(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		n      int
		factor int
	}{
		{"above default table", DefaultMaxPrime, 65537, 65537},
		{"above small table", MinMaxPrime, 2 * 101, 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactorizer(tt.limit).Factor(tt.n)
			require.ErrorIs(t, err, ErrUnsupportedFactor)

			var fe *FactorError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.n, fe.Gap)
			assert.Equal(t, tt.factor, fe.Factor)
			assert.Equal(t, tt.limit, fe.Limit)
		})
	}
}

func TestVote(t *testing.T) {
	f := NewFactorizer(DefaultMaxPrime)
	tallies, err := f.Vote([]int{6, 12, 1, 0, 35})
	require.NoError(t, err)

	assert.Equal(t, []Tally{
		{Prime: 2, Votes: 2, Total: 3},
		{Prime: 3, Votes: 2, Total: 2},
		{Prime: 5, Votes: 1, Total: 1},
		{Prime: 7, Votes: 1, Total: 1},
	}, tallies)
}

func TestResolveKeyLength(t *testing.T) {
	tallies := []Tally{
		{Prime: 2, Votes: 6, Total: 9},
		{Prime: 3, Votes: 4, Total: 4},
		{Prime: 5, Votes: 6, Total: 6},
		{Prime: 7, Votes: 5, Total: 5},
	}

	tests := []struct {
		name     string
		rounding Rounding
		want     int
		primes   []int
	}{
		{"floor", RoundFloor, 10, []int{2, 5}},
		{"nearest", RoundNearest, 20, []int{2, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveKeyLength(tallies, 10, DefaultThreshold, tt.rounding)
			assert.Equal(t, tt.want, res.KeyLength)
			assert.False(t, res.Degenerate)

			var primes []int
			for _, f := range res.Factors {
				primes = append(primes, f.Prime)
			}
			// 7 sits exactly on the threshold and is excluded.
			assert.Equal(t, tt.primes, primes)
		})
	}
}

func TestResolveKeyLengthDegenerate(t *testing.T) {
	res := ResolveKeyLength(nil, 0, DefaultThreshold, RoundFloor)
	assert.Equal(t, 1, res.KeyLength)
	assert.True(t, res.Degenerate)

	res = ResolveKeyLength([]Tally{{Prime: 3, Votes: 2, Total: 2}}, 10, DefaultThreshold, RoundFloor)
	assert.Equal(t, 1, res.KeyLength)
	assert.True(t, res.Degenerate)
}

func TestResolveKeyLengthSaturates(t *testing.T) {
	res := ResolveKeyLength([]Tally{{Prime: 65521, Votes: 10, Total: 30}}, 10, DefaultThreshold, RoundFloor)
	assert.Equal(t, maxKeyLength, res.KeyLength)
}

func TestParseRounding(t *testing.T) {
	r, err := ParseRounding("")
	require.NoError(t, err)
	assert.Equal(t, RoundFloor, r)

	r, err = ParseRounding("Nearest")
	require.NoError(t, err)
	assert.Equal(t, RoundNearest, r)
	assert.Equal(t, "nearest", r.String())

	_, err = ParseRounding("ceil")
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestBestShift(t *testing.T) {
	for s := 0; s < freq.AlphabetSize; s++ {
		var obs [freq.AlphabetSize]float64
		for k := 0; k < freq.AlphabetSize; k++ {
			obs[(k+s)%freq.AlphabetSize] = freq.English.Freqs[k]
		}
		got, dist := BestShift(freq.English, obs)
		assert.Equal(t, s, got)
		assert.InDelta(t, 0, dist, 1e-12)
	}
}

func TestBestShiftTiesPickSmallest(t *testing.T) {
	flat := freq.Table{Name: "flat"}
	for i := range flat.Freqs {
		flat.Freqs[i] = 0.5
	}
	var obs [freq.AlphabetSize]float64
	obs[0] = 1
	got, _ := BestShift(flat, obs)
	assert.Equal(t, 0, got)
}

func TestRecoverKeyEmptyCoset(t *testing.T) {
	_, err := RecoverKey(textnorm.FromString("abc"), 5, freq.English)
	require.ErrorIs(t, err, ErrEmptyCoset)

	var ce *CosetError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Index)
	assert.Equal(t, 5, ce.KeyLength)
	assert.Equal(t, 3, ce.TextLength)
}

func TestCosetFrequencies(t *testing.T) {
	obs, n := CosetFrequencies(textnorm.FromString("abab"), 2, 1)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, obs[1])
	assert.Zero(t, obs[0])
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero threshold", WithThreshold(0)},
		{"threshold one", WithThreshold(1)},
		{"small prime table", WithMaxPrime(50)},
		{"empty table", WithTable(freq.Table{Name: "empty"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

func TestAnalyzeKnownKeys(t *testing.T) {
	harbor := loadHarbor(t)
	a := newAnalyzer(t)

	tests := []struct {
		key    string
		length int
		want   string
	}{
		{"bramble", 7, "bramble"},
		{"merchant", 8, "merchant"},
		{"notebook", 8, "notebook"},
		{"tide", 4, "tide"},
		{"lighthouse", 10, "lighthouse"},
		{"lemon", 10, "lemonlemon"},
		{"compass", 14, "compasscompass"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			res, err := a.Analyze(context.Background(), strings.NewReader(encrypt(t, harbor, tt.key)))
			require.NoError(t, err)
			assert.Equal(t, tt.length, res.KeyLength)
			assert.Equal(t, tt.want, res.Key)
			assert.False(t, res.Degenerate)
			assert.Len(t, res.Shifts, tt.length)
		})
	}
}

func TestAnalyzeKeyLengthSanity(t *testing.T) {
	harbor := loadHarbor(t)
	a := newAnalyzer(t)

	keys := []string{
		"lemon", "key", "secret", "harbor", "anchor", "cipher", "ledger",
		"parish", "winter", "quill", "gorse", "ferry", "lighthouse", "compass",
		"customs", "merchant", "notebook", "tide", "bramble", "driftwood",
	}

	hits := 0
	for _, key := range keys {
		res, err := a.Analyze(context.Background(), strings.NewReader(encrypt(t, harbor, key)))
		require.NoError(t, err, key)

		l := len(key)
		if res.KeyLength == l || res.KeyLength == 2*l || 2*res.KeyLength == l {
			hits++
		} else {
			t.Logf("key %q: recovered length %d", key, res.KeyLength)
		}
	}
	assert.GreaterOrEqual(t, float64(hits)/float64(len(keys)), 0.9)
}

func TestAnalyzeRepeatedPlaintext(t *testing.T) {
	// The plaintext period (12) multiplies into the estimate.
	ct := encrypt(t, strings.Repeat("ATTACKATDAWN", 100), "LEMON")
	res, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader(ct))
	require.NoError(t, err)
	assert.Equal(t, 60, res.KeyLength)
	assert.Zero(t, res.KeyLength%5)
}

func TestAnalyzeDeterministic(t *testing.T) {
	ct := encrypt(t, loadHarbor(t), "gorse")
	a := newAnalyzer(t)

	first, err := a.Analyze(context.Background(), strings.NewReader(ct))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := a.Analyze(context.Background(), strings.NewReader(ct))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAnalyzeTooShort(t *testing.T) {
	for _, input := range []string{"ab", "A!b?", "x"} {
		_, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader(input))
		require.ErrorIs(t, err, ErrInput, "input %q", input)
		assert.ErrorIs(t, err, ErrTooShort)
	}
}

func TestAnalyzeNoLetters(t *testing.T) {
	_, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader("12345 !!"))
	require.ErrorIs(t, err, ErrInput)
	assert.ErrorIs(t, err, textnorm.ErrNoLetters)
}

func TestAnalyzeReadError(t *testing.T) {
	_, err := newAnalyzer(t).Analyze(context.Background(), iotest.ErrReader(errors.New("boom")))
	require.ErrorIs(t, err, ErrInput)
	assert.ErrorIs(t, err, textnorm.ErrRead)
}

func TestAnalyzeDegenerate(t *testing.T) {
	res, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader("abcdefghijklmnopqrstuvwxyz"))
	require.NoError(t, err)
	assert.True(t, res.Degenerate)
	assert.Equal(t, 1, res.KeyLength)
	assert.Len(t, res.Key, 1)
	assert.Zero(t, res.RepeatEvents)
}

func TestAnalyzeUnsupportedFactor(t *testing.T) {
	text := "abc" + strings.Repeat("z", 98) + "abc"
	_, err := newAnalyzer(t, WithMaxPrime(MinMaxPrime)).Analyze(context.Background(), strings.NewReader(text))
	require.ErrorIs(t, err, ErrUnsupportedFactor)

	var fe *FactorError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 101, fe.Gap)

	res, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader(text))
	require.NoError(t, err)
	assert.True(t, res.Degenerate)
}

func TestAnalyzeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer(t).Analyze(ctx, strings.NewReader("some ciphertext"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeFoldAccents(t *testing.T) {
	plain := strings.Repeat("a ação ", 3)
	folded, err := newAnalyzer(t, WithFoldAccents(true)).Analyze(context.Background(), strings.NewReader(plain))
	require.NoError(t, err)
	plainRes, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader(plain))
	require.NoError(t, err)
	assert.Equal(t, 15, folded.Letters)
	assert.Equal(t, 9, plainRes.Letters)
}

func TestResultTopTallies(t *testing.T) {
	r := &Result{Tallies: []Tally{
		{Prime: 2, Votes: 4},
		{Prime: 3, Votes: 9},
		{Prime: 5, Votes: 4},
		{Prime: 7, Votes: 1},
	}}
	top := r.TopTallies(3)
	require.Len(t, top, 3)
	assert.Equal(t, []int{3, 2, 5}, []int{top[0].Prime, top[1].Prime, top[2].Prime})
	assert.Len(t, r.TopTallies(-1), 4)
}

func TestAnalyzerForTable(t *testing.T) {
	a := newAnalyzer(t, WithThreshold(0.4))
	pt := a.ForTable(freq.Portuguese)

	assert.Equal(t, "english", a.Table().Name)
	assert.Equal(t, "portuguese", pt.Table().Name)
	assert.Equal(t, 0.4, pt.Threshold())
	assert.Equal(t, a.MaxPrime(), pt.MaxPrime())
}
