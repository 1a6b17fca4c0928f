package term

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminalRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.False(t, IsTerminal(nil))
}

func TestIsTerminalPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	assert.False(t, IsTerminal(r))
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unix line", "attack at dawn\nrest", "attack at dawn"},
		{"crlf", "lemon\r\n", "lemon"},
		{"no newline", "lemon", "lemon"},
		{"empty line", "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := Prompt(&out, bufio.NewReader(strings.NewReader(tt.input)), "Key: ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Key: ", out.String())
		})
	}
}

func TestPromptEOF(t *testing.T) {
	_, err := Prompt(io.Discard, bufio.NewReader(strings.NewReader("")), "")
	assert.ErrorIs(t, err, io.EOF)
}

func TestPromptSecretFallsBack(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	got, err := PromptSecret(&out, bufio.NewReader(strings.NewReader("tide\n")), f, "Key: ")
	require.NoError(t, err)
	assert.Equal(t, "tide", got)
	assert.Equal(t, "Key: ", out.String())
}
