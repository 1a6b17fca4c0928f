// Package vigenere implements the repeating-key shift cipher over the Latin
// alphabet.
package vigenere

import (
	"errors"
	"fmt"
	"io"
)

// ErrInvalidKey is returned for empty keys and keys holding non-letters.
var ErrInvalidKey = errors.New("invalid key")

// KeyError describes why a key was rejected.
type KeyError struct {
	Key string
	// Pos is the byte offset of the first non-letter, or -1 for an empty key.
	Pos int
}

func (e *KeyError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%v: key is empty", ErrInvalidKey)
	}
	return fmt.Sprintf("%v: key must contain only letters, found %q at offset %d",
		ErrInvalidKey, e.Key[e.Pos], e.Pos)
}

func (e *KeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

// ValidateKey accepts non-empty keys made of ASCII letters in either case.
func ValidateKey(key string) error {
	if key == "" {
		return &KeyError{Key: key, Pos: -1}
	}
	for i := 0; i < len(key); i++ {
		if !isLetter(key[i]) {
			return &KeyError{Key: key, Pos: i}
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func shifts(key string) []byte {
	s := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' {
			s[i] = c - 'a'
		} else {
			s[i] = c - 'A'
		}
	}
	return s
}

// Cipher transforms text with a fixed key. The key position advances only
// on letters and persists across calls, so a stream may be transformed in
// chunks.
type Cipher struct {
	shifts  []byte
	decrypt bool
	pos     int
}

// NewEncrypter returns a Cipher that shifts letters forward.
func NewEncrypter(key string) (*Cipher, error) {
	return newCipher(key, false)
}

// NewDecrypter returns a Cipher that shifts letters backward.
func NewDecrypter(key string) (*Cipher, error) {
	return newCipher(key, true)
}

func newCipher(key string, decrypt bool) (*Cipher, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return &Cipher{shifts: shifts(key), decrypt: decrypt}, nil
}

// Reset moves the key position back to the first key letter.
func (c *Cipher) Reset() { c.pos = 0 }

// Transform writes the transformed src into dst, which must be at least as
// long as src. dst and src may be the same slice.
func (c *Cipher) Transform(dst, src []byte) {
	for i, b := range src {
		var base byte
		switch {
		case b >= 'a' && b <= 'z':
			base = 'a'
		case b >= 'A' && b <= 'Z':
			base = 'A'
		default:
			dst[i] = b
			continue
		}
		k := c.shifts[c.pos%len(c.shifts)]
		if c.decrypt {
			k = 26 - k
		}
		dst[i] = base + (b-base+k)%26
		c.pos++
	}
}

// Stream copies r to w, transforming every chunk.
func (c *Cipher) Stream(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, 4096)
	var written int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.Transform(buf[:n], buf[:n])
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("write output: %w", werr)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("read input: %w", err)
		}
	}
}

// Encode shifts each letter of plaintext forward by the next key letter.
// Non-letters pass through and case is preserved.
func Encode(plaintext, key string) (string, error) {
	c, err := NewEncrypter(key)
	if err != nil {
		return "", err
	}
	out := []byte(plaintext)
	c.Transform(out, out)
	return string(out), nil
}

// Decode reverses Encode.
func Decode(ciphertext, key string) (string, error) {
	c, err := NewDecrypter(key)
	if err != nil {
		return "", err
	}
	out := []byte(ciphertext)
	c.Transform(out, out)
	return string(out), nil
}
