package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/cargo-current/internal/world"
)

// Errors returned by Dispatch. Callers match them with errors.Is.
var (
	ErrUnknownPort   = errors.New("engine: unknown port")
	ErrUnknownLane   = errors.New("engine: unknown lane")
	ErrUnknownVessel = errors.New("engine: unknown vessel")
	ErrLaneTooShort  = errors.New("engine: a lane needs at least two ports")
	ErrUnroutable    = errors.New("engine: no route between the lane's ports")
	ErrInvalidCargo  = errors.New("engine: invalid cargo injection")
	ErrGameOver      = errors.New("engine: game is over")
)

// Command is a discrete mutation applied between ticks.
type Command interface {
	commandName() string
}

// CreateLane opens a lane through Ports and puts one vessel on it.
// An empty Color picks the next palette entry.
type CreateLane struct {
	Ports []PortID `json:"ports"`
	Color string   `json:"color,omitempty"`
}

// SetLanePorts replaces a lane's port sequence and reroutes it.
type SetLanePorts struct {
	Lane  LaneID   `json:"lane"`
	Ports []PortID `json:"ports"`
}

// SpawnVessel adds a vessel at the first way-point of a lane.
type SpawnVessel struct {
	Lane LaneID `json:"lane"`
}

// UpgradePort turns a port into a megaport.
type UpgradePort struct {
	Port PortID `json:"port"`
}

// UpgradeVessel enlarges a vessel's hold.
type UpgradeVessel struct {
	Vessel VesselID `json:"vessel"`
}

// InjectCargo drops Count units bound for Destination straight into a port
// queue, ignoring capacity.
type InjectCargo struct {
	Port        PortID `json:"port"`
	Destination PortID `json:"destination"`
	Count       int    `json:"count"`
}

func (CreateLane) commandName() string    { return "create_lane" }
func (SetLanePorts) commandName() string  { return "set_lane_ports" }
func (SpawnVessel) commandName() string   { return "spawn_vessel" }
func (UpgradePort) commandName() string   { return "upgrade_port" }
func (UpgradeVessel) commandName() string { return "upgrade_vessel" }
func (InjectCargo) commandName() string   { return "inject_cargo" }

// CommandResult reports what a command created or changed.
type CommandResult struct {
	Lane        LaneID    `json:"lane,omitempty"`
	Vessel      VesselID  `json:"vessel,omitempty"`
	Port        PortID    `json:"port,omitempty"`
	Cargo       []CargoID `json:"cargo,omitempty"`
	Description string    `json:"description"`
}

// Dispatch applies cmd to the simulation.
func (s *Simulation) Dispatch(cmd Command) (CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GameOver {
		return CommandResult{}, ErrGameOver
	}

	var (
		res CommandResult
		err error
	)
	switch c := cmd.(type) {
	case CreateLane:
		res, err = s.createLane(c)
	case SetLanePorts:
		res, err = s.setLanePorts(c)
	case SpawnVessel:
		res, err = s.spawnVessel(c.Lane)
	case UpgradePort:
		res, err = s.upgradePort(c.Port)
	case UpgradeVessel:
		res, err = s.upgradeVessel(c.Vessel)
	case InjectCargo:
		res, err = s.injectCargo(c)
	default:
		return CommandResult{}, fmt.Errorf("engine: unsupported command %T", cmd)
	}
	if err != nil {
		slog.Debug("command rejected", "command", cmd.commandName(), "error", err)
		return CommandResult{}, err
	}
	s.emit(cmd.commandName(), res.Description, map[string]any{
		"lane":   res.Lane,
		"vessel": res.Vessel,
		"port":   res.Port,
	})
	slog.Info("command applied", "command", cmd.commandName(), "description", res.Description)
	return res, nil
}

// ComputeLane routes a lane through the given ports without registering it.
func (s *Simulation) ComputeLane(ports []PortID) ([]world.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route(ports)
}

// SpawnVessel adds a vessel to a lane.
func (s *Simulation) SpawnVessel(lane LaneID) (VesselID, error) {
	res, err := s.Dispatch(SpawnVessel{Lane: lane})
	return res.Vessel, err
}

// UpgradePort applies the megaport upgrade to a port.
func (s *Simulation) UpgradePort(port PortID) error {
	_, err := s.Dispatch(UpgradePort{Port: port})
	return err
}

// UpgradeVessel enlarges a vessel's hold.
func (s *Simulation) UpgradeVessel(vessel VesselID) error {
	_, err := s.Dispatch(UpgradeVessel{Vessel: vessel})
	return err
}

func (s *Simulation) route(ports []PortID) ([]world.Point, error) {
	if len(ports) < 2 {
		return nil, ErrLaneTooShort
	}
	stops := make([]world.Point, len(ports))
	for i, id := range ports {
		p := s.PortIndex[id]
		if p == nil {
			return nil, fmt.Errorf("lane stop %d: %w", id, ErrUnknownPort)
		}
		stops[i] = p.Position
	}
	path := s.router.ComputeLane(stops)
	if len(path) < 2 {
		return nil, ErrUnroutable
	}
	return path, nil
}

func (s *Simulation) createLane(c CreateLane) (CommandResult, error) {
	path, err := s.route(c.Ports)
	if err != nil {
		return CommandResult{}, err
	}
	color := c.Color
	if color == "" {
		palette := s.Tuning.LaneColors
		color = palette[len(s.Lanes)%len(palette)]
	}
	l := &Lane{
		ID:    LaneID(s.newID()),
		Ports: append([]PortID(nil), c.Ports...),
		Color: color,
		Path:  path,
	}
	s.Lanes = append(s.Lanes, l)
	s.LaneIndex[l.ID] = l

	v := s.addVessel(l)
	return CommandResult{
		Lane:        l.ID,
		Vessel:      v.ID,
		Description: fmt.Sprintf("lane %d opened through %d ports", l.ID, len(l.Ports)),
	}, nil
}

func (s *Simulation) setLanePorts(c SetLanePorts) (CommandResult, error) {
	l := s.LaneIndex[c.Lane]
	if l == nil {
		return CommandResult{}, fmt.Errorf("lane %d: %w", c.Lane, ErrUnknownLane)
	}
	path, err := s.route(c.Ports)
	if err != nil {
		return CommandResult{}, err
	}
	l.Ports = append([]PortID(nil), c.Ports...)
	l.Path = path

	last := len(path) - 1
	onLane := make(map[PortID]bool, len(l.Ports))
	for _, id := range l.Ports {
		onLane[id] = true
	}
	for _, id := range l.Vessels {
		v := s.VesselIndex[id]
		if v == nil {
			continue
		}
		v.PathIndex = clampIndex(v.PathIndex, last)
		if port := s.PortIndex[v.DockedAt]; v.State == Docked && port != nil {
			// Stay alongside the dock port; cast off if the lane no longer calls there.
			v.PathIndex = nearestWaypoint(path, port.Position)
			if !onLane[port.ID] {
				v.State = Underway
				v.DockedAt = 0
				v.DockElapsed = 0
			}
		}
		v.Progress = 0
		v.Position = path[v.PathIndex]
	}
	return CommandResult{
		Lane:        l.ID,
		Description: fmt.Sprintf("lane %d rerouted through %d ports", l.ID, len(l.Ports)),
	}, nil
}

func (s *Simulation) addVessel(l *Lane) *Vessel {
	v := &Vessel{
		ID:        VesselID(s.newID()),
		Lane:      l.ID,
		Position:  l.Path[0],
		Capacity:  s.Tuning.Vessels.BaseCapacity,
		Direction: 1,
		State:     Underway,
	}
	s.Vessels = append(s.Vessels, v)
	s.VesselIndex[v.ID] = v
	l.Vessels = append(l.Vessels, v.ID)
	return v
}

func (s *Simulation) spawnVessel(lane LaneID) (CommandResult, error) {
	l := s.LaneIndex[lane]
	if l == nil {
		return CommandResult{}, fmt.Errorf("lane %d: %w", lane, ErrUnknownLane)
	}
	v := s.addVessel(l)
	return CommandResult{
		Lane:        l.ID,
		Vessel:      v.ID,
		Description: fmt.Sprintf("vessel %d launched on lane %d", v.ID, l.ID),
	}, nil
}

func (s *Simulation) upgradePort(id PortID) (CommandResult, error) {
	p := s.PortIndex[id]
	if p == nil {
		return CommandResult{}, fmt.Errorf("port %d: %w", id, ErrUnknownPort)
	}
	f := s.Tuning.Ports.UpgradeFactor
	p.Capacity = int(math.Floor(float64(p.Capacity) * f))
	p.ExchangeSpeed *= f
	p.UpgradeLevel++
	return CommandResult{
		Port:        p.ID,
		Description: fmt.Sprintf("%s upgraded to a megaport (capacity %d)", p.Name, p.Capacity),
	}, nil
}

func (s *Simulation) upgradeVessel(id VesselID) (CommandResult, error) {
	v := s.VesselIndex[id]
	if v == nil {
		return CommandResult{}, fmt.Errorf("vessel %d: %w", id, ErrUnknownVessel)
	}
	v.Capacity += s.Tuning.Vessels.CapacityUpgrade
	v.UpgradeLevel++
	return CommandResult{
		Vessel:      v.ID,
		Lane:        v.Lane,
		Description: fmt.Sprintf("vessel %d hold enlarged to %d", v.ID, v.Capacity),
	}, nil
}

func (s *Simulation) injectCargo(c InjectCargo) (CommandResult, error) {
	p := s.PortIndex[c.Port]
	if p == nil {
		return CommandResult{}, fmt.Errorf("port %d: %w", c.Port, ErrUnknownPort)
	}
	if s.PortIndex[c.Destination] == nil {
		return CommandResult{}, fmt.Errorf("destination %d: %w", c.Destination, ErrUnknownPort)
	}
	if c.Destination == c.Port || c.Count <= 0 {
		return CommandResult{}, ErrInvalidCargo
	}
	res := CommandResult{Port: p.ID}
	for i := 0; i < c.Count; i++ {
		res.Cargo = append(res.Cargo, s.addCargo(p, c.Destination).ID)
	}
	res.Description = fmt.Sprintf("%d units piled onto the quay at %s", c.Count, p.Name)
	return res, nil
}
