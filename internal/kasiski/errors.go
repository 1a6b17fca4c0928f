package kasiski

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks failures caused by the ciphertext itself.
	ErrInput = errors.New("invalid input")

	// ErrTooShort is wrapped by ErrInput when the text has fewer than
	// MinLetters letters.
	ErrTooShort = errors.New("text too short")

	// ErrUnsupportedFactor marks a gap whose prime factor lies beyond the
	// prime table.
	ErrUnsupportedFactor = errors.New("unsupported factor")

	// ErrDegenerateKeyLength is reported, never returned, when no prime
	// clears the vote threshold.
	ErrDegenerateKeyLength = errors.New("no factor cleared the vote threshold, key length defaults to 1")

	// ErrEmptyCoset marks a key length that leaves some key position without
	// ciphertext letters.
	ErrEmptyCoset = errors.New("empty coset")

	ErrInvalidOption = errors.New("invalid analysis option")
)

// FactorError reports a gap that cannot be factored with the prime table.
type FactorError struct {
	Gap    int
	Factor int
	Limit  int
}

func (e *FactorError) Error() string {
	return fmt.Sprintf("%v: gap %d has factor %d above the prime table limit %d",
		ErrUnsupportedFactor, e.Gap, e.Factor, e.Limit)
}

func (e *FactorError) Is(target error) bool {
	return target == ErrUnsupportedFactor
}

// CosetError reports a key position with no letters assigned to it.
type CosetError struct {
	Index      int
	KeyLength  int
	TextLength int
}

func (e *CosetError) Error() string {
	return fmt.Sprintf("%v: position %d of key length %d has no letters in a %d-letter text",
		ErrEmptyCoset, e.Index, e.KeyLength, e.TextLength)
}

func (e *CosetError) Is(target error) bool {
	return target == ErrEmptyCoset
}
