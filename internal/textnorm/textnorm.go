// Package textnorm reduces arbitrary text to a sequence of letter codes.
package textnorm

import (
	"errors"
	"fmt"
	"io"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// chunkSize is the read size used when draining the input stream.
const chunkSize = 4096

var (
	ErrRead      = errors.New("could not read input")
	ErrNoLetters = errors.New("input contains no letters")
)

// Text is an ordered sequence of letter codes in [0,26).
type Text []byte

// Len returns the number of letters.
func (t Text) Len() int { return len(t) }

// String renders the text as lowercase letters.
func (t Text) String() string {
	b := make([]byte, len(t))
	for i, c := range t {
		b[i] = 'a' + c
	}
	return string(b)
}

// Options control normalization.
type Options struct {
	// FoldAccents maps letters carrying diacritics to their base letter
	// before filtering. Without it every non-ASCII byte is discarded.
	FoldAccents bool
}

// Normalize reads r to EOF and keeps only ASCII letters, case-folded.
func Normalize(r io.Reader, opts Options) (Text, error) {
	if opts.FoldAccents {
		r = transform.NewReader(r, foldTransformer())
	}

	text := make(Text, 0, chunkSize)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		text = appendLetters(text, buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
	}

	if len(text) == 0 {
		return nil, ErrNoLetters
	}
	return text, nil
}

// FromString normalizes s without accent folding.
func FromString(s string) Text {
	return appendLetters(make(Text, 0, len(s)), []byte(s))
}

func appendLetters(dst Text, src []byte) Text {
	for _, c := range src {
		switch {
		case c >= 'a' && c <= 'z':
			dst = append(dst, c-'a')
		case c >= 'A' && c <= 'Z':
			dst = append(dst, c-'A')
		}
	}
	return dst
}

// foldTransformer decomposes to NFD, drops combining marks and recomposes.
func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Fold returns s with diacritics removed from Latin letters.
func Fold(s string) (string, error) {
	out, _, err := transform.String(foldTransformer(), s)
	if err != nil {
		return "", fmt.Errorf("fold accents: %w", err)
	}
	return out, nil
}
