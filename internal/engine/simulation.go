// Simulation ties together ports, lanes, vessels and cargo and advances them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/cargo-current/internal/cargo"
	"github.com/talgya/cargo-current/internal/entropy"
	"github.com/talgya/cargo-current/internal/routing"
	"github.com/talgya/cargo-current/internal/tuning"
	"github.com/talgya/cargo-current/internal/world"
)

const maxRecentEvents = 1000

// Simulation holds the complete game state. Every exported method locks it,
// so the engine loop and API handlers may call in from different goroutines.
type Simulation struct {
	mu sync.Mutex

	Map    *world.Map
	Tuning tuning.Tuning

	obstacles *world.ObstacleField
	router    *routing.Router
	rng       entropy.Source
	names     *world.NameGenerator

	// Arenas keyed by identity, plus creation order for stable iteration.
	Ports       []*Port
	PortIndex   map[PortID]*Port
	Lanes       []*Lane
	LaneIndex   map[LaneID]*Lane
	Vessels     []*Vessel
	VesselIndex map[VesselID]*Vessel
	Cargo       map[CargoID]*CargoUnit

	nextID uint64

	LastTick  uint64  // Number of AdvanceSimulation calls that did work
	Elapsed   float64 // Simulated seconds
	Day       int
	dayTime   float64
	Delivered uint64 // Cargo units delivered, ever
	Created   uint64 // Cargo units created, ever
	GameOver  bool

	Events  []Event // Recent events, oldest first
	lastSeq uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	// pending holds callbacks collected under the lock and run after release.
	pending []func()

	// Collaborator hooks. Set before the engine starts.
	OnDelivered func(total uint64)
	OnDay       func(day int, stats SimStats)
	OnGameOver  func(summary GameOverSummary)
}

// Event is a notable occurrence in the simulation.
type Event struct {
	Seq         uint64         `json:"seq"` // Emission order, from 1
	Tick        uint64         `json:"tick"`
	Time        float64        `json:"time"`
	Day         int            `json:"day"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "day", "port", "lane", "vessel", "delivery", "overflow", "game_over", ...
	Meta        map[string]any `json:"meta,omitempty"`
}

// SimStats summarizes the current state.
type SimStats struct {
	Day           int     `json:"day"`
	Ports         int     `json:"ports"`
	Lanes         int     `json:"lanes"`
	Vessels       int     `json:"vessels"`
	Delivered     uint64  `json:"delivered"`
	Waiting       int     `json:"waiting"`    // Units in port queues
	InTransit     int     `json:"in_transit"` // Units in vessel holds
	Overflowing   int     `json:"overflowing"`
	WorstOverflow float64 `json:"worst_overflow"` // Largest overflow timer, seconds
}

// GameOverSummary is reported once when sustained overflow ends the game.
type GameOverSummary struct {
	Day       int     `json:"day"`
	Delivered uint64  `json:"delivered"`
	Elapsed   float64 `json:"elapsed"`
	Port      PortID  `json:"port"`
	PortName  string  `json:"port_name"`
}

// NewSimulation creates an empty simulation over m. The router rasterizes the
// obstacle field once here.
func NewSimulation(m *world.Map, t tuning.Tuning, src entropy.Source) *Simulation {
	field := m.Obstacles(t.Routing.Clearance)
	return &Simulation{
		Map:         m,
		Tuning:      t,
		obstacles:   field,
		router:      routing.NewRouter(field, m.Bounds, t.Routing.CellSize, t.Routing.Tolerance),
		rng:         src,
		names:       world.NewNameGenerator(src),
		PortIndex:   make(map[PortID]*Port),
		LaneIndex:   make(map[LaneID]*Lane),
		VesselIndex: make(map[VesselID]*Vessel),
		Cargo:       make(map[CargoID]*CargoUnit),
		subs:        make(map[int]chan Event),
	}
}

// NewWorld creates a simulation with the opening ports: one per distinct
// landmass, carrying the common categories in catalogue order.
func NewWorld(m *world.Map, t tuning.Tuning, seed int64) *Simulation {
	s := NewSimulation(m, t, entropy.Derive(seed, entropy.StreamSimulation))
	common := cargo.ByRarity(cargo.RarityCommon)
	sites := world.PlaceInitialPorts(m, t.Ports.InitialCount, entropy.Derive(seed, entropy.StreamPorts), s.names)
	if len(sites) < t.Ports.InitialCount {
		slog.Warn("fewer landmasses than initial ports", "wanted", t.Ports.InitialCount, "placed", len(sites))
	}
	for i, site := range sites {
		s.addPort(site, common[i%len(common)])
	}
	slog.Info("world ready", "landmasses", len(m.Landmasses), "ports", len(s.Ports))
	return s
}

// Router exposes the lane router.
func (s *Simulation) Router() *routing.Router {
	return s.router
}

// RoutingGrid describes the rasterized grid lanes are routed over.
type RoutingGrid struct {
	Cols      int     `json:"cols"`
	Rows      int     `json:"rows"`
	CellSize  float64 `json:"cell_size"`
	FreeCells int     `json:"free_cells"`
	Clearance float64 `json:"clearance"` // Open water kept around every landmass
}

// RoutingGrid reports the router's grid. Landmasses never move, so it needs no lock.
func (s *Simulation) RoutingGrid() RoutingGrid {
	g := s.router.Grid()
	return RoutingGrid{
		Cols:      g.Cols,
		Rows:      g.Rows,
		CellSize:  g.CellSize,
		FreeCells: g.FreeCount(),
		Clearance: s.obstacles.Clearance(),
	}
}

func (s *Simulation) newID() uint64 {
	s.nextID++
	return s.nextID
}

// AddPort opens a port at site.
func (s *Simulation) AddPort(site world.PortSite, category cargo.Category) PortID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPort(site, category).ID
}

func (s *Simulation) addPort(site world.PortSite, category cargo.Category) *Port {
	p := &Port{
		ID:            PortID(s.newID()),
		Name:          site.Name,
		Position:      site.Position,
		LandmassID:    site.Landmass,
		Category:      category,
		Capacity:      s.Tuning.Ports.BaseCapacity,
		ExchangeSpeed: 1.0,
	}
	s.Ports = append(s.Ports, p)
	s.PortIndex[p.ID] = p
	return p
}

func (s *Simulation) addCargo(origin *Port, dest PortID) *CargoUnit {
	u := &CargoUnit{
		ID:          CargoID(s.newID()),
		Category:    origin.Category,
		Origin:      origin.ID,
		Destination: dest,
	}
	s.Cargo[u.ID] = u
	s.Created++
	origin.Queue = append(origin.Queue, u.ID)
	return u
}

// AdvanceSimulation moves the world forward by dt seconds: clock and port
// growth, vessel movement and docking, overflow tracking, then cargo
// generation. After game over it does nothing.
func (s *Simulation) AdvanceSimulation(dt float64) {
	s.mu.Lock()
	if s.GameOver || dt <= 0 {
		s.mu.Unlock()
		return
	}
	s.LastTick++
	before := s.Delivered

	s.advanceClock(dt)
	s.moveVessels(dt)
	s.trackOverflow(dt)
	s.generateCargo()

	if s.Delivered != before && s.OnDelivered != nil {
		total, hook := s.Delivered, s.OnDelivered
		s.pending = append(s.pending, func() { hook(total) })
	}
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (s *Simulation) advanceClock(dt float64) {
	s.Elapsed += dt
	s.dayTime += dt
	if s.dayTime < s.Tuning.Time.SecondsPerDay {
		return
	}
	s.dayTime -= s.Tuning.Time.SecondsPerDay
	s.Day++

	s.emit("day", fmt.Sprintf("%s, day %d", DayName(s.Day), s.Day), map[string]any{
		"day":         s.Day,
		"day_of_week": DayName(s.Day),
	})
	if entropy.Chance(s.rng, s.Tuning.Ports.SpawnChance) {
		s.spawnPort()
	}

	stats := s.stats()
	slog.Info("daily report",
		"day", s.Day,
		"time", SimTime(s.Elapsed, s.Tuning.Time.SecondsPerDay),
		"ports", stats.Ports,
		"lanes", stats.Lanes,
		"vessels", stats.Vessels,
		"delivered", humanize.Comma(int64(stats.Delivered)),
		"waiting", stats.Waiting,
		"overflowing", stats.Overflowing,
	)
	if s.OnDay != nil {
		day, hook := s.Day, s.OnDay
		s.pending = append(s.pending, func() { hook(day, stats) })
	}
}

// Progress is game progress from 0 toward 1, driving category rarity.
func (s *Simulation) progress() float64 {
	return float64(s.Day) / s.Tuning.Ports.ProgressDays
}

func (s *Simulation) spawnPort() {
	occupied := make(map[world.LandmassID]bool, len(s.Ports))
	for _, p := range s.Ports {
		occupied[p.LandmassID] = true
	}
	site, ok := world.PlacePort(s.Map, occupied, s.rng, s.names)
	if !ok {
		slog.Debug("no free landmass for a new port", "day", s.Day)
		return
	}
	p := s.addPort(site, cargo.Choose(s.rng, s.progress()))
	s.emit("port", "A new port opens at "+p.Name, map[string]any{
		"port":     p.ID,
		"name":     p.Name,
		"category": p.Category.String(),
	})
	slog.Info("port opened", "port", p.ID, "name", p.Name, "category", p.Category, "day", s.Day)
}

// trackOverflow updates every port's overflow state and raises game over
// when one has overflowed for the configured number of days.
func (s *Simulation) trackOverflow(dt float64) {
	limit := s.Tuning.OverflowLimit()
	for _, p := range s.Ports {
		if len(p.Queue) > p.Capacity {
			if !p.Overflowing {
				p.Overflowing = true
				p.OverflowElapsed = 0
				s.emit("overflow", p.Name+" is overflowing", map[string]any{
					"port":  p.ID,
					"queue": len(p.Queue),
				})
				continue
			}
			p.OverflowElapsed += dt
			if p.OverflowElapsed >= limit && !s.GameOver {
				s.endGame(p)
			}
		} else if p.Overflowing {
			p.Overflowing = false
			p.OverflowElapsed = 0
			s.emit("overflow", p.Name+" is back under capacity", map[string]any{"port": p.ID})
		}
	}
}

func (s *Simulation) endGame(p *Port) {
	s.GameOver = true
	summary := GameOverSummary{
		Day:       s.Day,
		Delivered: s.Delivered,
		Elapsed:   s.Elapsed,
		Port:      p.ID,
		PortName:  p.Name,
	}
	s.emit("game_over", "Game over: "+p.Name+" overflowed", map[string]any{
		"day":       summary.Day,
		"delivered": summary.Delivered,
		"port":      p.ID,
	})
	slog.Warn("game over",
		"port", p.Name,
		"day", summary.Day,
		"delivered", humanize.Comma(int64(summary.Delivered)),
	)
	if s.OnGameOver != nil {
		hook := s.OnGameOver
		s.pending = append(s.pending, func() { hook(summary) })
	}
}

// generateCargo gives every port a chance to produce one unit bound for
// another port of the same category.
func (s *Simulation) generateCargo() {
	chance := s.Tuning.Cargo.SpawnChance
	limit := s.Tuning.Cargo.SpawnHeadroom
	for _, p := range s.Ports {
		if len(p.Queue) >= p.Capacity+limit {
			continue
		}
		if !entropy.Chance(s.rng, chance) {
			continue
		}
		var dests []*Port
		for _, other := range s.Ports {
			if other.ID != p.ID && other.Category == p.Category {
				dests = append(dests, other)
			}
		}
		if len(dests) == 0 {
			continue
		}
		s.addCargo(p, dests[entropy.Pick(s.rng, len(dests))].ID)
	}
}

// emit records an event and fans it out to subscribers. Caller holds s.mu.
func (s *Simulation) emit(category, description string, meta map[string]any) {
	s.lastSeq++
	e := Event{
		Seq:         s.lastSeq,
		Tick:        s.LastTick,
		Time:        s.Elapsed,
		Day:         s.Day,
		Description: description,
		Category:    category,
		Meta:        meta,
	}
	s.Events = append(s.Events, e)
	if len(s.Events) > maxRecentEvents {
		s.Events = s.Events[len(s.Events)-maxRecentEvents:]
	}
	s.broadcast(e)
}

// Subscribe returns a channel receiving every future event. Slow subscribers
// miss events rather than stall the simulation.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe stops delivery to a subscriber and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) broadcast(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// RecentEvents returns up to n of the latest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.Events) - n
	if start < 0 {
		start = 0
	}
	return append([]Event(nil), s.Events[start:]...)
}

// Stats returns the current summary.
func (s *Simulation) Stats() SimStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats()
}

func (s *Simulation) stats() SimStats {
	st := SimStats{
		Day:       s.Day,
		Ports:     len(s.Ports),
		Lanes:     len(s.Lanes),
		Vessels:   len(s.Vessels),
		Delivered: s.Delivered,
	}
	for _, p := range s.Ports {
		st.Waiting += len(p.Queue)
		if p.Overflowing {
			st.Overflowing++
			if p.OverflowElapsed > st.WorstOverflow {
				st.WorstOverflow = p.OverflowElapsed
			}
		}
	}
	for _, v := range s.Vessels {
		st.InTransit += len(v.Hold)
	}
	return st
}

// Snapshot is a deep copy of the simulation state, safe to read without the lock.
type Snapshot struct {
	Tick      uint64      `json:"tick"`
	Clock     Clock       `json:"clock"`
	Delivered uint64      `json:"delivered"`
	Created   uint64      `json:"created"`
	GameOver  bool        `json:"game_over"`
	Stats     SimStats    `json:"stats"`
	Ports     []Port      `json:"ports"`
	Lanes     []Lane      `json:"lanes"`
	Vessels   []Vessel    `json:"vessels"`
	Cargo     []CargoUnit `json:"cargo"`
}

// Snapshot copies the current state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Tick:      s.LastTick,
		Clock:     s.clock(),
		Delivered: s.Delivered,
		Created:   s.Created,
		GameOver:  s.GameOver,
		Stats:     s.stats(),
		Ports:     make([]Port, 0, len(s.Ports)),
		Lanes:     make([]Lane, 0, len(s.Lanes)),
		Vessels:   make([]Vessel, 0, len(s.Vessels)),
		Cargo:     make([]CargoUnit, 0, len(s.Cargo)),
	}
	for _, p := range s.Ports {
		cp := *p
		cp.Queue = append([]CargoID(nil), p.Queue...)
		snap.Ports = append(snap.Ports, cp)
	}
	for _, l := range s.Lanes {
		cp := *l
		cp.Ports = append([]PortID(nil), l.Ports...)
		cp.Path = append([]world.Point(nil), l.Path...)
		cp.Vessels = append([]VesselID(nil), l.Vessels...)
		snap.Lanes = append(snap.Lanes, cp)
	}
	for _, v := range s.Vessels {
		cp := *v
		cp.Hold = append([]CargoID(nil), v.Hold...)
		snap.Vessels = append(snap.Vessels, cp)
	}
	for _, u := range s.Cargo {
		snap.Cargo = append(snap.Cargo, *u)
	}
	sort.Slice(snap.Cargo, func(i, j int) bool { return snap.Cargo[i].ID < snap.Cargo[j].ID })
	return snap
}
