// Package term detects interactive terminals and reads prompted input.
package term

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// ErrNotTerminal is returned when echo control is requested on a file that
// is not a terminal.
var ErrNotTerminal = errors.New("not a terminal")

// IsTerminal reports whether f refers to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isTerminal(f)
}

// Prompt writes label to w and reads one line from r without its line ending.
// io.EOF is returned only when nothing was read.
func Prompt(w io.Writer, r *bufio.Reader, label string) (string, error) {
	if label != "" {
		if _, err := io.WriteString(w, label); err != nil {
			return "", err
		}
	}
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptSecret is Prompt with terminal echo disabled on f while the line is
// read. When f is not a terminal it behaves like Prompt.
func PromptSecret(w io.Writer, r *bufio.Reader, f *os.File, label string) (string, error) {
	if !IsTerminal(f) {
		return Prompt(w, r, label)
	}
	restore, err := disableEcho(f)
	if err != nil {
		return Prompt(w, r, label)
	}
	defer restore()

	line, err := Prompt(w, r, label)
	io.WriteString(w, "\n")
	return line, err
}
