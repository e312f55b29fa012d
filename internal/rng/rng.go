// Package rng provides splittable random keys.
//
// A Key is an immutable value. Deriving keys (Split, Fold) never consumes
// randomness from the parent, so the same root key always yields the same
// tree of keys regardless of the order in which children are used.
package rng

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// ErrMissingKey is returned when an operation needs randomness and was
// given the zero Key.
var ErrMissingKey = errors.New("rng: missing key")

// golden is the 64-bit golden ratio increment used by SplitMix64.
const golden = 0x9e3779b97f4a7c15

// Key is a splittable random key. The zero value is not a valid key.
type Key struct {
	s0, s1 uint64
	valid  bool
}

// New derives a root key from a seed. Every seed, including 0, gives a
// valid key.
func New(seed uint64) Key {
	return Key{
		s0:    mix(seed),
		s1:    mix(seed + golden),
		valid: true,
	}
}

// Valid reports whether k was produced by New, Split or Fold.
func (k Key) Valid() bool {
	return k.valid
}

// Check returns ErrMissingKey for the zero Key.
func (k Key) Check() error {
	if !k.valid {
		return ErrMissingKey
	}
	return nil
}

// Split derives n independent child keys.
func (k Key) Split(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = k.Fold(uint64(i))
	}
	return keys
}

// Fold derives a child key from k and data.
func (k Key) Fold(data uint64) Key {
	return Key{
		s0:    mix(k.s0 ^ mix(data+golden)),
		s1:    mix(k.s1 + mix(data^k.s0)),
		valid: k.valid,
	}
}

// FoldString derives a child key from k and a name, for example a layer
// name.
func (k Key) FoldString(name string) Key {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return k.Fold(h.Sum64())
}

// Rand returns a PCG generator seeded from k. Two calls on the same key
// return generators producing the same stream.
func (k Key) Rand() *rand.Rand {
	return rand.New(rand.NewPCG(k.s0, k.s1))
}

// Choice draws size distinct indices from [0, n) uniformly at random, in
// draw order. It runs a partial Fisher-Yates shuffle, so the cost is O(n)
// memory and O(size) swaps.
func (k Key) Choice(n, size int) ([]int, error) {
	if err := k.Check(); err != nil {
		return nil, err
	}
	if size < 0 || size > n {
		return nil, fmt.Errorf("rng: cannot choose %d of %d without replacement", size, n)
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r := k.Rand()
	for i := 0; i < size; i++ {
		j := i + r.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:size:size], nil
}

// String formats the key for logs.
func (k Key) String() string {
	if !k.valid {
		return "Key(<missing>)"
	}
	return fmt.Sprintf("Key(%016x%016x)", k.s0, k.s1)
}

// mix is the SplitMix64 finalizer.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
