// Package randutil centralises random source construction so deck
// shuffles and strategy sampling are reproducible when seeded.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from seed. The two
// 64-bit PCG seeds are derived by mixing so nearby seeds do not produce
// correlated shuffles.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewFromTime returns a *rand.Rand seeded from the current time, for
// production play where reproducibility is not wanted.
func NewFromTime() *rand.Rand {
	return New(time.Now().UnixNano())
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
