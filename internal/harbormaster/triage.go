package harbormaster

import (
	"sort"

	"github.com/talgya/cargo-current/internal/world"
)

const (
	criticalOverflow = 50.0 // overflow_percent at which a port is critical
	watchLoad        = 0.75 // queue/capacity share that puts a port on watch
)

// PortPressure is the derived load of one port.
type PortPressure struct {
	Port     PortInfo
	Load     float64  // Waiting / Capacity
	Lanes    []uint64 // Lanes calling at the port
	Peers    []uint64 // Other ports of the same category, nearest first
	Linked   bool     // Some lane calls at both the port and a peer
	Vessels  int      // Vessels across Lanes
	Stranded bool     // Cargo waiting but no route to any peer
}

// HarborHealth holds diagnostic signals computed from a HarborSnapshot.
type HarborHealth struct {
	Pressures   []PortPressure // Most pressed first
	Overflowing int
	Stranded    int
	Idle        []uint64 // Lanes without vessels
	CrisisLevel string   // "CRITICAL", "WARNING", "WATCH", "HEALTHY"
}

// Worst returns the most pressed port, if any.
func (h *HarborHealth) Worst() (PortPressure, bool) {
	if len(h.Pressures) == 0 {
		return PortPressure{}, false
	}
	return h.Pressures[0], true
}

// Triage computes a HarborHealth from the snapshot's data.
func Triage(snap *HarborSnapshot) *HarborHealth {
	h := &HarborHealth{}

	lanesAt := make(map[uint64][]uint64)
	laneVessels := make(map[uint64]int)
	calls := make(map[uint64]map[uint64]bool)
	for _, l := range snap.Lanes {
		laneVessels[l.ID] = len(l.Vessels)
		if len(l.Vessels) == 0 {
			h.Idle = append(h.Idle, l.ID)
		}
		set := make(map[uint64]bool, len(l.Ports))
		for _, p := range l.Ports {
			if !set[p] {
				lanesAt[p] = append(lanesAt[p], l.ID)
			}
			set[p] = true
		}
		calls[l.ID] = set
	}

	for _, p := range snap.Ports {
		pp := PortPressure{Port: p, Lanes: lanesAt[p.ID]}
		if p.Capacity > 0 {
			pp.Load = float64(p.Waiting) / float64(p.Capacity)
		}
		pp.Peers = peersOf(p, snap.Ports)
		for _, l := range pp.Lanes {
			pp.Vessels += laneVessels[l]
			for _, peer := range pp.Peers {
				if calls[l][peer] {
					pp.Linked = true
				}
			}
		}
		pp.Stranded = p.Waiting > 0 && !pp.Linked && len(pp.Peers) > 0
		if p.Overflowing {
			h.Overflowing++
		}
		if pp.Stranded {
			h.Stranded++
		}
		h.Pressures = append(h.Pressures, pp)
	}

	sort.SliceStable(h.Pressures, func(i, j int) bool {
		a, b := h.Pressures[i], h.Pressures[j]
		if a.Port.OverflowPercent != b.Port.OverflowPercent {
			return a.Port.OverflowPercent > b.Port.OverflowPercent
		}
		return a.Load > b.Load
	})

	h.CrisisLevel = "HEALTHY"
	worst, ok := h.Worst()
	switch {
	case !ok:
	case worst.Port.OverflowPercent >= criticalOverflow:
		h.CrisisLevel = "CRITICAL"
	case h.Overflowing > 0:
		h.CrisisLevel = "WARNING"
	case worst.Load >= watchLoad || h.Stranded > 0:
		h.CrisisLevel = "WATCH"
	}

	return h
}

// peersOf lists the other ports sharing p's category, nearest first.
func peersOf(p PortInfo, ports []PortInfo) []uint64 {
	var peers []PortInfo
	for _, o := range ports {
		if o.ID != p.ID && o.Category == p.Category {
			peers = append(peers, o)
		}
	}
	sort.SliceStable(peers, func(i, j int) bool {
		return world.Distance(p.Position, peers[i].Position) < world.Distance(p.Position, peers[j].Position)
	})
	ids := make([]uint64, len(peers))
	for i, o := range peers {
		ids[i] = o.ID
	}
	return ids
}
