package routing

import (
	"container/heap"
	"math"
)

type step struct {
	d        Cell
	cost     float64
	diagonal bool
}

var steps = [8]step{
	{d: Cell{Col: 1}, cost: 1},
	{d: Cell{Col: -1}, cost: 1},
	{d: Cell{Row: 1}, cost: 1},
	{d: Cell{Row: -1}, cost: 1},
	{d: Cell{Col: 1, Row: 1}, cost: math.Sqrt2, diagonal: true},
	{d: Cell{Col: -1, Row: 1}, cost: math.Sqrt2, diagonal: true},
	{d: Cell{Col: 1, Row: -1}, cost: math.Sqrt2, diagonal: true},
	{d: Cell{Col: -1, Row: -1}, cost: math.Sqrt2, diagonal: true},
}

type node struct {
	cell   Cell
	g      float64
	f      float64
	parent *node
	index  int
}

type openSet []*node

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }

func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}

func (o *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*o)
	*o = append(*o, n)
}

func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*o = old[:len(old)-1]
	return n
}

func manhattan(a, b Cell) float64 {
	return math.Abs(float64(a.Col-b.Col)) + math.Abs(float64(a.Row-b.Row))
}

// canCut reports whether a diagonal step from c avoids cutting the corner of a
// blocked orthogonal neighbor.
func (g *Grid) canCut(c Cell, s step) bool {
	if !s.diagonal {
		return true
	}
	return !g.Blocked(Cell{Col: c.Col + s.d.Col, Row: c.Row}) &&
		!g.Blocked(Cell{Col: c.Col, Row: c.Row + s.d.Row})
}

// AStar searches the 8-connected grid from start to goal. Cardinal steps cost
// 1 and diagonal steps √2, guided by the Manhattan heuristic. It returns the
// cell sequence from start to goal, or nil when the frontier runs dry.
func (g *Grid) AStar(start, goal Cell) []Cell {
	if g.Blocked(start) || g.Blocked(goal) {
		return nil
	}

	open := &openSet{}
	heap.Init(open)
	heap.Push(open, &node{cell: start, f: manhattan(start, goal)})

	best := make(map[Cell]float64, 64)
	best[start] = 0
	closed := make(map[Cell]bool, 64)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.cell] {
			continue
		}
		if cur.cell == goal {
			return reconstruct(cur)
		}
		closed[cur.cell] = true

		for _, s := range steps {
			next := Cell{Col: cur.cell.Col + s.d.Col, Row: cur.cell.Row + s.d.Row}
			if g.Blocked(next) || closed[next] || !g.canCut(cur.cell, s) {
				continue
			}
			gScore := cur.g + s.cost
			if prev, ok := best[next]; ok && prev <= gScore {
				continue
			}
			best[next] = gScore
			heap.Push(open, &node{
				cell:   next,
				g:      gScore,
				f:      gScore + manhattan(next, goal),
				parent: cur,
			})
		}
	}
	return nil
}

func reconstruct(end *node) []Cell {
	var path []Cell
	for n := end; n != nil; n = n.parent {
		path = append(path, n.cell)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
