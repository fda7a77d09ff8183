package mlearn

import (
	"math/rand"
	"time"
)

// ResolveSeed maps the seed option onto a concrete seed: -1 draws from the
// entropy source (wall clock), any other value is used verbatim so runs are
// reproducible.
func ResolveSeed(seed int64) int64 {
	if seed == -1 {
		s := time.Now().UnixNano()
		if s < 0 {
			s = -s
		}
		return s
	}
	return seed
}

// NewRand returns a generator seeded through ResolveSeed. Each estimator
// owns its generator; nothing is shared across goroutines.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(ResolveSeed(seed)))
}
