package textnorm

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		fold  bool
		want  string
	}{
		{"lowercase", "abc", false, "abc"},
		{"mixed case", "HeLLo", false, "hello"},
		{"punctuation", "Hello, world!", false, "helloworld"},
		{"digits and whitespace", "a1 b2\tc3\n", false, "abc"},
		{"accents dropped", "ação", false, "ao"},
		{"accents folded", "ação", true, "acao"},
		{"cedilla and tilde", "Coração São", true, "coracaosao"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(strings.NewReader(tt.input), Options{FoldAccents: tt.fold})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNormalizeLetterCodes(t *testing.T) {
	got, err := Normalize(strings.NewReader("AzZa"), Options{})
	require.NoError(t, err)
	assert.Equal(t, Text{0, 25, 25, 0}, got)
	assert.Equal(t, 4, got.Len())
}

func TestNormalizeNoLetters(t *testing.T) {
	for _, input := range []string{"", "1234 !?", "\n\n"} {
		_, err := Normalize(strings.NewReader(input), Options{})
		assert.ErrorIs(t, err, ErrNoLetters, "input %q", input)
	}
}

func TestNormalizeReadError(t *testing.T) {
	r := iotest.TimeoutReader(iotest.OneByteReader(strings.NewReader("abcdef")))
	_, err := Normalize(r, Options{})
	assert.ErrorIs(t, err, ErrRead)
	assert.False(t, errors.Is(err, ErrNoLetters))
}

func TestNormalizeLargeInput(t *testing.T) {
	input := strings.Repeat("The quick brown fox. ", 2000)
	got, err := Normalize(iotest.HalfReader(strings.NewReader(input)), Options{})
	require.NoError(t, err)
	assert.Equal(t, 16*2000, got.Len())
	assert.Equal(t, "thequickbrownfox", got[:16].String())
}

func TestFromString(t *testing.T) {
	assert.Equal(t, "attackatdawn", FromString("Attack at dawn!").String())
	assert.Empty(t, FromString("..."))
}

func TestFold(t *testing.T) {
	got, err := Fold("Não há coração")
	require.NoError(t, err)
	assert.Equal(t, "Nao ha coracao", got)
}
