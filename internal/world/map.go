package world

import "fmt"

// LandmassID identifies a landmass within one map.
type LandmassID uint64

// Landmass is an impassable island. Center and Radius drive occupancy;
// Boundary is the irregular rim polygon in world coordinates.
type Landmass struct {
	ID       LandmassID `json:"id"`
	Center   Point      `json:"center"`
	Radius   float64    `json:"radius"`
	Boundary []Point    `json:"boundary"`
}

// Map holds the immutable world geometry.
type Map struct {
	Bounds     Bounds      `json:"bounds"`
	Landmasses []*Landmass `json:"landmasses"`
}

// NewMap creates an empty map with the given bounds.
func NewMap(width, height float64) *Map {
	return &Map{Bounds: Bounds{Width: width, Height: height}}
}

// Get returns the landmass with the given ID, or nil.
func (m *Map) Get(id LandmassID) *Landmass {
	for _, l := range m.Landmasses {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Add appends a landmass, assigning the next ID.
func (m *Map) Add(l *Landmass) {
	l.ID = LandmassID(len(m.Landmasses) + 1)
	m.Landmasses = append(m.Landmasses, l)
}

// Obstacles returns the obstacle field for this map with the given clearance.
func (m *Map) Obstacles(clearance float64) *ObstacleField {
	return NewObstacleField(m.Landmasses, clearance)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%.0fx%.0f, landmasses=%d)", m.Bounds.Width, m.Bounds.Height, len(m.Landmasses))
}
