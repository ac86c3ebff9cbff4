package harbormaster

import (
	"fmt"
	"sort"
)

// Actions the harbormaster can take.
const (
	ActionNone          = "none"
	ActionCreateLane    = "create_lane"
	ActionSpawnVessel   = "spawn_vessel"
	ActionUpgradePort   = "upgrade_port"
	ActionUpgradeVessel = "upgrade_vessel"
)

// Policy bounds how far the harbormaster may push the harbor.
type Policy struct {
	MaxPortUpgrades   int // Per port
	MaxVesselUpgrades int // Per vessel
	MaxVesselsPerLane int
	Cooldown          int // Cycles before repeating an action on the same target
}

// DefaultPolicy returns the standard limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxPortUpgrades:   2,
		MaxVesselUpgrades: 1,
		MaxVesselsPerLane: 3,
		Cooldown:          2,
	}
}

// Decision is the outcome of one decide step.
type Decision struct {
	Action    string   `json:"action"`
	Rationale string   `json:"rationale"`
	Port      uint64   `json:"port,omitempty"`
	Lane      uint64   `json:"lane,omitempty"`
	Vessel    uint64   `json:"vessel,omitempty"`
	Ports     []uint64 `json:"ports,omitempty"`
}

// Target returns the identity the decision acts on.
func (d *Decision) Target() uint64 {
	switch d.Action {
	case ActionCreateLane, ActionUpgradePort:
		return d.Port
	case ActionSpawnVessel:
		return d.Lane
	case ActionUpgradeVessel:
		return d.Vessel
	}
	return 0
}

// Decide picks at most one action for the most pressed port that still has
// a lever left. Ports are considered in triage order.
func Decide(snap *HarborSnapshot, health *HarborHealth, mem *CycleMemory, pol Policy) *Decision {
	if snap.Status.GameOver {
		return &Decision{Action: ActionNone, Rationale: "game is over"}
	}
	if health.CrisisLevel == "HEALTHY" {
		return &Decision{Action: ActionNone, Rationale: "harbor healthy"}
	}

	d := decider{snap: snap, mem: mem, pol: pol, laneVessels: make(map[uint64]int)}
	for _, l := range snap.Lanes {
		d.laneVessels[l.ID] = len(l.Vessels)
	}

	for _, pp := range health.Pressures {
		if !pp.Port.Overflowing && pp.Load < watchLoad && !pp.Stranded {
			continue
		}
		if dec := d.forPort(pp); dec != nil {
			return dec
		}
	}
	return &Decision{Action: ActionNone, Rationale: fmt.Sprintf("%s, but every lever is spent or cooling down", health.CrisisLevel)}
}

type decider struct {
	snap        *HarborSnapshot
	mem         *CycleMemory
	pol         Policy
	laneVessels map[uint64]int
}

func (d *decider) recent(action string, target uint64) bool {
	return d.mem != nil && d.mem.Recent(action, target, d.pol.Cooldown)
}

func (d *decider) forPort(pp PortPressure) *Decision {
	p := pp.Port

	if !pp.Linked && len(pp.Peers) > 0 && !d.recent(ActionCreateLane, p.ID) {
		return &Decision{
			Action:    ActionCreateLane,
			Rationale: fmt.Sprintf("%s has %d waiting and no lane to a matching port", p.Name, p.Waiting),
			Port:      p.ID,
			Ports:     []uint64{p.ID, pp.Peers[0]},
		}
	}

	if p.Overflowing && p.UpgradeLevel < d.pol.MaxPortUpgrades && !d.recent(ActionUpgradePort, p.ID) {
		return &Decision{
			Action:    ActionUpgradePort,
			Rationale: fmt.Sprintf("%s overflowing at %.0f%%", p.Name, p.OverflowPercent),
			Port:      p.ID,
		}
	}

	if lane, ok := d.quietestLane(pp.Lanes); ok {
		return &Decision{
			Action:    ActionSpawnVessel,
			Rationale: fmt.Sprintf("%s at load %.2f, lane %d has %d vessels", p.Name, pp.Load, lane, d.laneVessels[lane]),
			Port:      p.ID,
			Lane:      lane,
		}
	}

	if p.Overflowing {
		if v, ok := d.smallestVessel(pp.Lanes); ok {
			return &Decision{
				Action:    ActionUpgradeVessel,
				Rationale: fmt.Sprintf("%s overflowing and its lanes are full, enlarging vessel %d", p.Name, v),
				Port:      p.ID,
				Vessel:    v,
			}
		}
	}
	return nil
}

// quietestLane picks the lane with the fewest vessels that is under the cap
// and not cooling down.
func (d *decider) quietestLane(lanes []uint64) (uint64, bool) {
	var best uint64
	found := false
	for _, l := range lanes {
		n := d.laneVessels[l]
		if n >= d.pol.MaxVesselsPerLane || d.recent(ActionSpawnVessel, l) {
			continue
		}
		if !found || n < d.laneVessels[best] {
			best, found = l, true
		}
	}
	return best, found
}

// smallestVessel picks the least upgraded vessel on lanes, lowest ID first.
func (d *decider) smallestVessel(lanes []uint64) (uint64, bool) {
	on := make(map[uint64]bool, len(lanes))
	for _, l := range lanes {
		on[l] = true
	}
	var candidates []VesselInfo
	for _, v := range d.snap.Vessels {
		if on[v.Lane] && v.UpgradeLevel < d.pol.MaxVesselUpgrades && !d.recent(ActionUpgradeVessel, v.ID) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].UpgradeLevel != candidates[j].UpgradeLevel {
			return candidates[i].UpgradeLevel < candidates[j].UpgradeLevel
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0].ID, true
}
