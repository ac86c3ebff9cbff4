// Package entropy provides the random sources injected into world generation
// and the simulation. Every stream is derived from one seed so a run can be replayed.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// Source is the subset of *rand.Rand the simulation draws from.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Stream offsets keep independent consumers from sharing a sequence.
const (
	StreamLandmasses int64 = 100
	StreamPorts      int64 = 200
	StreamSimulation int64 = 300
)

// NewSource returns a deterministic source for seed.
func NewSource(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// Derive returns the source for one named stream of a run seed.
func Derive(seed, stream int64) *mrand.Rand {
	return NewSource(seed + stream)
}

// ResolveSeed returns seed unchanged, or a fresh seed from crypto/rand when seed is 0.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := cryptoSeed()
	slog.Debug("generated random seed", "seed", s)
	return s
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		return 1
	}
	return s
}

// Chance reports whether an event with probability p fires on this draw.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	return src.Float64() < p
}

// Pick returns a uniformly chosen index in [0, n), or -1 when n is 0.
func Pick(src Source, n int) int {
	if n <= 0 {
		return -1
	}
	return src.Intn(n)
}
