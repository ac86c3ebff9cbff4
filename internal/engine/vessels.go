package engine

import (
	"math"

	"github.com/talgya/cargo-current/internal/world"
)

// moveVessels advances every vessel by dt.
func (s *Simulation) moveVessels(dt float64) {
	for _, v := range s.Vessels {
		lane := s.LaneIndex[v.Lane]
		if lane == nil || len(lane.Path) < 2 {
			continue
		}
		if v.State == Docked {
			s.tickDocked(v, lane, dt)
			continue
		}
		s.tickUnderway(v, lane, dt)
	}
}

// tickDocked accumulates dock time and exchanges cargo every tick, including
// the tick the vessel casts off.
func (s *Simulation) tickDocked(v *Vessel, lane *Lane, dt float64) {
	v.DockElapsed += dt
	port := s.PortIndex[v.DockedAt]
	if port == nil {
		v.State = Underway
		v.DockElapsed = 0
		return
	}
	if v.DockElapsed >= s.Tuning.Vessels.DockDuration/port.ExchangeSpeed {
		v.State = Underway
		v.DockElapsed = 0
		v.Progress = 0
		v.DockedAt = 0
	}
	s.exchange(v, lane, port)
}

// tickUnderway walks the vessel along its current segment. At either end of
// the lane the direction flips before the next way-point is chosen.
func (s *Simulation) tickUnderway(v *Vessel, lane *Lane, dt float64) {
	path := lane.Path
	last := len(path) - 1
	idx := clampIndex(v.PathIndex, last)
	v.PathIndex = idx

	next := idx + v.Direction
	if next < 0 || next > last {
		v.Direction = -v.Direction
		next = clampIndex(idx+v.Direction, last)
	}

	from, to := path[idx], path[next]
	segLen := world.Distance(from, to)
	if segLen > 0 {
		v.Progress += s.Tuning.Vessels.Speed * dt / segLen
	} else {
		v.Progress = 1
	}

	if v.Progress < 1 {
		v.Position = world.Lerp(from, to, v.Progress)
		return
	}

	v.Position = to
	v.PathIndex = next
	v.Progress = 0
	if port := s.portNear(to); port != nil {
		v.State = Docked
		v.DockedAt = port.ID
		v.DockElapsed = 0
	}
}

// portNear returns the first port, in creation order, within docking range of p.
func (s *Simulation) portNear(p world.Point) *Port {
	r := s.Tuning.DockRadius()
	for _, port := range s.Ports {
		if world.Distance(port.Position, p) < r {
			return port
		}
	}
	return nil
}

// exchange unloads every unit bound for port, then fills the hold from the
// port queue, taking units this lane can deliver before the rest.
func (s *Simulation) exchange(v *Vessel, lane *Lane, port *Port) {
	kept := v.Hold[:0]
	delivered := 0
	for _, id := range v.Hold {
		u := s.Cargo[id]
		if u != nil && u.Destination == port.ID {
			delete(s.Cargo, id)
			delivered++
			continue
		}
		kept = append(kept, id)
	}
	v.Hold = kept
	if delivered > 0 {
		s.Delivered += uint64(delivered)
		s.emit("delivery", "cargo delivered to "+port.Name, map[string]any{
			"port":   port.ID,
			"vessel": v.ID,
			"count":  delivered,
			"total":  s.Delivered,
		})
	}

	room := v.Capacity - len(v.Hold)
	if room <= 0 || len(port.Queue) == 0 {
		return
	}

	onLane := make(map[PortID]bool, len(lane.Ports))
	for _, id := range lane.Ports {
		onLane[id] = true
	}
	taken := make(map[CargoID]bool, room)
	for _, preferred := range [2]bool{true, false} {
		for _, id := range port.Queue {
			if room == 0 {
				break
			}
			u := s.Cargo[id]
			if taken[id] || u == nil || onLane[u.Destination] != preferred {
				continue
			}
			taken[id] = true
			v.Hold = append(v.Hold, id)
			room--
		}
	}

	rest := port.Queue[:0]
	for _, id := range port.Queue {
		if !taken[id] {
			rest = append(rest, id)
		}
	}
	port.Queue = rest
}

// nearestWaypoint returns the index of the path point closest to p, first on ties.
func nearestWaypoint(path []world.Point, p world.Point) int {
	best, bestDist := 0, math.Inf(1)
	for i, q := range path {
		if d := world.Distance(p, q); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func clampIndex(i, last int) int {
	return max(0, min(last, i))
}
