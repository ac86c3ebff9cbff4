package world

type disc struct {
	x, y   float64
	reach2 float64
}

// ObstacleField answers point-in-landmass queries. A point is blocked when it
// lies within a landmass radius plus a fixed clearance of that landmass center,
// which keeps lanes visibly off the coastline.
type ObstacleField struct {
	discs     []disc
	clearance float64
}

// NewObstacleField snapshots the landmass set. Landmasses are immutable after
// generation, so the field never needs rebuilding.
func NewObstacleField(landmasses []*Landmass, clearance float64) *ObstacleField {
	f := &ObstacleField{clearance: clearance, discs: make([]disc, 0, len(landmasses))}
	for _, l := range landmasses {
		reach := l.Radius + clearance
		f.discs = append(f.discs, disc{x: l.Center.X, y: l.Center.Y, reach2: reach * reach})
	}
	return f
}

// IsBlocked reports whether (x, y) is inside any landmass-plus-clearance zone.
func (f *ObstacleField) IsBlocked(x, y float64) bool {
	for _, d := range f.discs {
		dx := x - d.x
		dy := y - d.y
		if dx*dx+dy*dy < d.reach2 {
			return true
		}
	}
	return false
}

// Clearance returns the safety margin added to every landmass radius.
func (f *ObstacleField) Clearance() float64 {
	return f.clearance
}
