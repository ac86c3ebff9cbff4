package routing

import (
	"log/slog"

	"github.com/talgya/cargo-current/internal/world"
)

// Router routes lanes across a grid rasterized once from an immutable obstacle field.
type Router struct {
	grid      *Grid
	tolerance float64
}

// NewRouter rasterizes field over bounds. tolerance is the simplifier epsilon.
func NewRouter(field Field, bounds world.Bounds, cellSize, tolerance float64) *Router {
	return &Router{
		grid:      NewGrid(field, bounds, cellSize),
		tolerance: tolerance,
	}
}

// Grid exposes the rasterized grid.
func (r *Router) Grid() *Grid {
	return r.grid
}

// FindPath returns an obstacle-free polyline of cell centers from one point to
// another, with the exact endpoints in first and last place. Blocked endpoint
// cells are replaced by the nearest free cell. The result is empty when no free
// cell exists or the goal cannot be reached.
func (r *Router) FindPath(from, to world.Point) []world.Point {
	start, ok := r.resolve(from)
	if !ok {
		return nil
	}
	goal, ok := r.resolve(to)
	if !ok {
		return nil
	}

	cells := r.grid.AStar(start, goal)
	if len(cells) == 0 {
		return nil
	}
	if len(cells) == 1 {
		return []world.Point{from, to}
	}

	path := make([]world.Point, len(cells))
	for i, c := range cells {
		path[i] = r.grid.Center(c)
	}
	path[0] = from
	path[len(path)-1] = to
	return path
}

func (r *Router) resolve(p world.Point) (Cell, bool) {
	c := r.grid.Locate(p)
	if !r.grid.Blocked(c) {
		return c, true
	}
	return r.grid.NearestFree(c)
}

// ComputeLane routes through stops in order, one segment per consecutive pair,
// and simplifies the result. Unroutable segments are left out. Each stop stays a
// way-point of the simplified lane so vessels can dock there.
func (r *Router) ComputeLane(stops []world.Point) []world.Point {
	var path []world.Point
	var seams []int
	for i := 0; i+1 < len(stops); i++ {
		seg := r.FindPath(stops[i], stops[i+1])
		if len(seg) == 0 {
			slog.Debug("lane segment unroutable, skipping",
				"from_x", stops[i].X, "from_y", stops[i].Y,
				"to_x", stops[i+1].X, "to_y", stops[i+1].Y)
			continue
		}
		if len(path) > 0 && path[len(path)-1] == seg[0] {
			seg = seg[1:]
		}
		path = append(path, seg...)
		seams = append(seams, len(path)-1)
	}
	return SimplifyPinned(path, seams, r.tolerance)
}

// PathLength returns the total length of a lane polyline.
func (r *Router) PathLength(path []world.Point) float64 {
	return world.PolylineLength(path)
}
