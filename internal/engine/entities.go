package engine

import (
	"fmt"

	"github.com/talgya/cargo-current/internal/cargo"
	"github.com/talgya/cargo-current/internal/world"
)

// Identities are unique per simulation and never reused.
type (
	PortID   uint64
	LaneID   uint64
	VesselID uint64
	CargoID  uint64
)

// Port is a fixed harbor on a landmass rim. It produces and accepts one cargo category.
type Port struct {
	ID         PortID           `json:"id"`
	Name       string           `json:"name"`
	Position   world.Point      `json:"position"`
	LandmassID world.LandmassID `json:"landmass_id"`
	Category   cargo.Category   `json:"category"`
	Capacity   int              `json:"capacity"`
	Queue      []CargoID        `json:"queue"`

	Overflowing     bool    `json:"overflowing"`
	OverflowElapsed float64 `json:"overflow_elapsed"` // Seconds of continuous overflow

	ExchangeSpeed float64 `json:"exchange_speed"` // Divides the dock duration
	UpgradeLevel  int     `json:"upgrade_level"`
}

// CargoUnit is one unit waiting in a port queue or riding in a vessel hold.
type CargoUnit struct {
	ID          CargoID        `json:"id"`
	Category    cargo.Category `json:"category"`
	Origin      PortID         `json:"origin"`
	Destination PortID         `json:"destination"`
}

// Lane is an ordered port sequence and the routed geometry through it.
type Lane struct {
	ID      LaneID        `json:"id"`
	Ports   []PortID      `json:"ports"`
	Color   string        `json:"color"`
	Path    []world.Point `json:"path"`
	Vessels []VesselID    `json:"vessels"`
}

// VesselState is the phase of a vessel's walk.
type VesselState uint8

const (
	Underway VesselState = iota
	Docked
)

func (s VesselState) String() string {
	if s == Docked {
		return "docked"
	}
	return "underway"
}

// MarshalText renders the state by name in JSON.
func (s VesselState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *VesselState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "underway":
		*s = Underway
	case "docked":
		*s = Docked
	default:
		return fmt.Errorf("engine: unknown vessel state %q", b)
	}
	return nil
}

// Vessel walks its lane back and forth, docking at ports to exchange cargo.
type Vessel struct {
	ID           VesselID    `json:"id"`
	Lane         LaneID      `json:"lane"`
	Position     world.Point `json:"position"`
	Hold         []CargoID   `json:"hold"`
	Capacity     int         `json:"capacity"`
	UpgradeLevel int         `json:"upgrade_level"`

	PathIndex int     `json:"path_index"` // Way-point the current segment starts from
	Progress  float64 `json:"progress"`   // Fraction of the current segment covered
	Direction int     `json:"direction"`  // +1 forward, -1 backward

	State       VesselState `json:"state"`
	DockedAt    PortID      `json:"docked_at,omitempty"`
	DockElapsed float64     `json:"dock_elapsed"`
}
