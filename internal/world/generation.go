// World generation: scatters non-overlapping landmasses across the map and
// shapes each rim with simplex noise.
package world

import (
	"log/slog"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/cargo-current/internal/entropy"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width  float64
	Height float64
	Seed   int64 // 0 = random

	MinLandmasses int
	MaxLandmasses int
	MinRadius     float64
	MaxRadius     float64
	MinGap        float64 // Open water kept between any two landmasses
	EdgeMargin    float64 // Fraction of each dimension kept free of landmass centers

	MinRimPoints int
	MaxRimPoints int
	RimVariance  float64 // Rim radius varies within ±RimVariance of Radius

	MaxAttempts int // Placement attempts before settling for fewer landmasses
}

// DefaultGenConfig returns the standard map: 10–19 islands on a 1600×900 sea.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:         1600,
		Height:        900,
		MinLandmasses: 10,
		MaxLandmasses: 19,
		MinRadius:     30,
		MaxRadius:     80,
		MinGap:        50,
		EdgeMargin:    0.1,
		MinRimPoints:  5,
		MaxRimPoints:  9,
		RimVariance:   0.3,
		MaxAttempts:   2000,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Width = 800
	cfg.Height = 600
	cfg.Seed = 42
	cfg.MinLandmasses = 4
	cfg.MaxLandmasses = 6
	return cfg
}

// Generate creates a map of landmasses. The same seed always yields the same map.
func Generate(cfg GenConfig) *Map {
	seed := entropy.ResolveSeed(cfg.Seed)
	rng := entropy.Derive(seed, entropy.StreamLandmasses)
	rimNoise := opensimplex.NewNormalized(seed)

	m := NewMap(cfg.Width, cfg.Height)

	want := cfg.MinLandmasses
	if span := cfg.MaxLandmasses - cfg.MinLandmasses; span > 0 {
		want += rng.Intn(span + 1)
	}

	attempts := 0
	for len(m.Landmasses) < want && attempts < cfg.MaxAttempts {
		attempts++

		center := Point{
			X: rng.Float64()*cfg.Width*(1-2*cfg.EdgeMargin) + cfg.Width*cfg.EdgeMargin,
			Y: rng.Float64()*cfg.Height*(1-2*cfg.EdgeMargin) + cfg.Height*cfg.EdgeMargin,
		}
		radius := cfg.MinRadius + rng.Float64()*(cfg.MaxRadius-cfg.MinRadius)

		if overlapsAny(m, center, radius, cfg.MinGap) {
			continue
		}

		l := &Landmass{Center: center, Radius: radius}
		m.Add(l)
		l.Boundary = shapeRim(rimNoise, rng, l, cfg)
	}

	if len(m.Landmasses) < want {
		slog.Warn("world generation placed fewer landmasses than requested",
			"placed", len(m.Landmasses), "wanted", want, "attempts", attempts)
	}
	return m
}

// overlapsAny reports whether a disc at center would come within gap of an existing landmass.
func overlapsAny(m *Map, center Point, radius, gap float64) bool {
	for _, other := range m.Landmasses {
		if Distance(center, other.Center) < radius+other.Radius+gap {
			return true
		}
	}
	return false
}

// shapeRim builds the irregular boundary polygon of a landmass. Each rim vertex
// sits at an evenly spaced angle with its distance from the center perturbed by
// noise sampled around a circle unique to the landmass.
func shapeRim(noise opensimplex.Noise, rng *rand.Rand, l *Landmass, cfg GenConfig) []Point {
	n := cfg.MinRimPoints
	if span := cfg.MaxRimPoints - cfg.MinRimPoints; span > 0 {
		n += rng.Intn(span + 1)
	}
	if n < 3 {
		n = 3
	}

	offset := float64(l.ID) * 17.0
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		angle := float64(i) / float64(n) * 2 * math.Pi
		sample := noise.Eval2(math.Cos(angle)+offset, math.Sin(angle)+offset)
		variance := 1 - cfg.RimVariance + sample*2*cfg.RimVariance
		points = append(points, OnCircle(l.Center, l.Radius*variance, angle))
	}
	return points
}
