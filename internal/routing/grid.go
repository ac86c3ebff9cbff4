// Package routing computes obstacle-free shipping lanes: a uniform grid over
// the world, A* across it, and Ramer–Douglas–Peucker simplification of the result.
package routing

import (
	"math"

	"github.com/talgya/cargo-current/internal/world"
)

// Field is the obstacle query the router rasterizes.
type Field interface {
	IsBlocked(x, y float64) bool
}

// Cell is a grid coordinate.
type Cell struct {
	Col int
	Row int
}

// Grid is the rasterized obstacle field. A cell is blocked iff its center is.
type Grid struct {
	Cols, Rows int
	CellSize   float64
	blocked    []bool
}

// NewGrid rasterizes field over bounds with square cells of cellSize.
func NewGrid(field Field, bounds world.Bounds, cellSize float64) *Grid {
	cols := int(math.Ceil(bounds.Width / cellSize))
	rows := int(math.Ceil(bounds.Height / cellSize))
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	g := &Grid{
		Cols:     cols,
		Rows:     rows,
		CellSize: cellSize,
		blocked:  make([]bool, cols*rows),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := g.Center(Cell{Col: col, Row: row})
			g.blocked[g.index(col, row)] = field.IsBlocked(c.X, c.Y)
		}
	}
	return g
}

func (g *Grid) index(col, row int) int {
	return row*g.Cols + col
}

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Row >= 0 && c.Col < g.Cols && c.Row < g.Rows
}

// Blocked reports whether c is blocked. Cells outside the grid count as blocked.
func (g *Grid) Blocked(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.blocked[g.index(c.Col, c.Row)]
}

// Center returns the world-space center of c.
func (g *Grid) Center(c Cell) world.Point {
	return world.Point{
		X: float64(c.Col)*g.CellSize + g.CellSize/2,
		Y: float64(c.Row)*g.CellSize + g.CellSize/2,
	}
}

// Locate returns the cell containing p, clamped into the grid.
func (g *Grid) Locate(p world.Point) Cell {
	col := int(math.Floor(p.X / g.CellSize))
	row := int(math.Floor(p.Y / g.CellSize))
	return Cell{Col: clampInt(col, 0, g.Cols-1), Row: clampInt(row, 0, g.Rows-1)}
}

var cardinal = [4]Cell{{Col: 1}, {Col: -1}, {Row: 1}, {Row: -1}}

// NearestFree runs a 4-directional breadth-first search from start and returns
// the first unblocked cell reached. ok is false when the grid has no free cell.
func (g *Grid) NearestFree(start Cell) (Cell, bool) {
	if !g.InBounds(start) {
		return Cell{}, false
	}
	visited := make([]bool, len(g.blocked))
	visited[g.index(start.Col, start.Row)] = true
	queue := []Cell{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !g.blocked[g.index(cur.Col, cur.Row)] {
			return cur, true
		}
		for _, d := range cardinal {
			next := Cell{Col: cur.Col + d.Col, Row: cur.Row + d.Row}
			if !g.InBounds(next) {
				continue
			}
			idx := g.index(next.Col, next.Row)
			if visited[idx] {
				continue
			}
			visited[idx] = true
			queue = append(queue, next)
		}
	}
	return Cell{}, false
}

// FreeCount returns the number of unblocked cells.
func (g *Grid) FreeCount() int {
	n := 0
	for _, b := range g.blocked {
		if !b {
			n++
		}
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
