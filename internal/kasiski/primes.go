package kasiski

import "sync"

const (
	// DefaultMaxPrime bounds the prime table: every prime below 2^16.
	DefaultMaxPrime = 65535

	// MinMaxPrime is the smallest accepted prime table bound.
	MinMaxPrime = 97
)

var (
	defaultPrimes     []int
	defaultPrimesOnce sync.Once
)

// Primes returns the primes up to and including limit in ascending order.
func Primes(limit int) []int {
	if limit == DefaultMaxPrime {
		defaultPrimesOnce.Do(func() {
			defaultPrimes = sieve(DefaultMaxPrime)
		})
		return defaultPrimes
	}
	return sieve(limit)
}

func sieve(limit int) []int {
	if limit < 2 {
		return nil
	}
	composite := make([]bool, limit+1)
	var primes []int
	for i := 2; i <= limit; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		for j := i * i; j <= limit; j += i {
			composite[j] = true
		}
	}
	return primes
}
