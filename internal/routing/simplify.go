package routing

import (
	"math"

	"github.com/talgya/cargo-current/internal/world"
)

// Simplify reduces path with Ramer–Douglas–Peucker: points closer than
// tolerance to the chord of their span are dropped. Paths of fewer than three
// points come back unchanged. The input is never modified.
func Simplify(path []world.Point, tolerance float64) []world.Point {
	if len(path) < 3 {
		return append([]world.Point(nil), path...)
	}
	return rdp(path, tolerance)
}

func rdp(pts []world.Point, tolerance float64) []world.Point {
	first, last := pts[0], pts[len(pts)-1]
	dmax, split := 0.0, 0
	for i := 1; i < len(pts)-1; i++ {
		if d := perpendicularDistance(pts[i], first, last); d > dmax {
			dmax, split = d, i
		}
	}
	if dmax <= tolerance {
		return []world.Point{first, last}
	}
	left := rdp(pts[:split+1], tolerance)
	right := rdp(pts[split:], tolerance)
	return append(left[:len(left)-1], right...)
}

// perpendicularDistance is the distance from p to the infinite line through a
// and b, or to a itself when a and b coincide.
func perpendicularDistance(p, a, b world.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// SimplifyPinned simplifies each span between consecutive pinned indices on its
// own, so every pinned point survives. pins must be ascending; the first and
// last indices of path are always pinned.
func SimplifyPinned(path []world.Point, pins []int, tolerance float64) []world.Point {
	if len(path) < 3 {
		return append([]world.Point(nil), path...)
	}
	bounds := make([]int, 0, len(pins)+2)
	bounds = append(bounds, 0)
	for _, p := range pins {
		if p > bounds[len(bounds)-1] && p < len(path)-1 {
			bounds = append(bounds, p)
		}
	}
	bounds = append(bounds, len(path)-1)

	out := make([]world.Point, 0, len(path))
	for i := 1; i < len(bounds); i++ {
		span := Simplify(path[bounds[i-1]:bounds[i]+1], tolerance)
		if len(out) > 0 {
			span = span[1:]
		}
		out = append(out, span...)
	}
	return out
}
