package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/cargo-current/internal/tuning"
	"github.com/talgya/cargo-current/internal/world"
)

func TestSimTime(t *testing.T) {
	cases := []struct {
		elapsed float64
		want    string
	}{
		{0, "Monday Day 1, 0:00"},
		{90, "Tuesday Day 2, 12:00"},
		{60*7 + 15, "Monday Day 8, 6:00"},
	}
	for _, c := range cases {
		if got := SimTime(c.elapsed, 60); got != c.want {
			t.Fatalf("SimTime(%v)=%q want %q", c.elapsed, got, c.want)
		}
	}
	if DayName(6) != "Sunday" || DayName(7) != "Monday" {
		t.Fatalf("weekday names do not wrap")
	}
}

func TestEngineStepsUntilCancelled(t *testing.T) {
	tn := tuning.Default()
	tn.Time.FrameRateHz = 200
	tn.Time.MaxFrameDelta = 0.002
	e := NewEngine(tn)
	e.SetSpeed(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dts []float64
	e.OnFrame = func(dt float64) {
		dts = append(dts, dt)
		if len(dts) == 5 {
			cancel()
		}
	}

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("engine did not stop")
	}

	if len(dts) < 5 {
		t.Fatalf("stepped %d frames", len(dts))
	}
	for _, dt := range dts {
		if dt != 0.002 {
			t.Fatalf("frame dt %v, want the clamped 0.002", dt)
		}
	}
	if e.Running() {
		t.Fatalf("engine still marked running")
	}
}

func TestEngineFrameDeltaFollowsWallClock(t *testing.T) {
	e := NewEngine(tuning.Default())
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }
	var dts []float64
	e.OnFrame = func(dt float64) { dts = append(dts, dt) }

	e.step(1)
	clock = clock.Add(10 * time.Millisecond)
	e.step(1)
	clock = clock.Add(5 * time.Second)
	e.step(1)
	clock = clock.Add(20 * time.Millisecond)
	e.step(3)

	want := []float64{e.Interval.Seconds(), 0.01, e.MaxFrameDelta, 0.06}
	if len(dts) != len(want) {
		t.Fatalf("stepped %d frames, want %d", len(dts), len(want))
	}
	for i := range want {
		if math.Abs(dts[i]-want[i]) > 1e-9 {
			t.Fatalf("frame %d dt %v, want %v", i, dts[i], want[i])
		}
	}
	if e.MaxFrameDelta != 0.25 {
		t.Fatalf("default MaxFrameDelta %v", e.MaxFrameDelta)
	}
}

func TestEngineStop(t *testing.T) {
	e := NewEngine(tuning.Default())
	started := make(chan struct{}, 1)
	e.OnFrame = func(float64) {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()
	<-started
	e.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Stop did not end the loop")
	}
}

func TestCommandErrors(t *testing.T) {
	s, ports := openSea(t, quietTuning(), world.Pt(150, 300), world.Pt(650, 300))

	cases := []struct {
		cmd  Command
		want error
	}{
		{CreateLane{Ports: ports[:1]}, ErrLaneTooShort},
		{CreateLane{Ports: []PortID{ports[0], 999}}, ErrUnknownPort},
		{SetLanePorts{Lane: 999, Ports: ports}, ErrUnknownLane},
		{SpawnVessel{Lane: 999}, ErrUnknownLane},
		{UpgradePort{Port: 999}, ErrUnknownPort},
		{UpgradeVessel{Vessel: 999}, ErrUnknownVessel},
		{InjectCargo{Port: ports[0], Destination: ports[0], Count: 1}, ErrInvalidCargo},
		{InjectCargo{Port: ports[0], Destination: ports[1], Count: 0}, ErrInvalidCargo},
		{InjectCargo{Port: ports[0], Destination: 999, Count: 1}, ErrUnknownPort},
	}
	for _, c := range cases {
		if _, err := s.Dispatch(c.cmd); !errors.Is(err, c.want) {
			t.Fatalf("Dispatch(%+v) err=%v want %v", c.cmd, err, c.want)
		}
	}
	if len(s.Lanes) != 0 || len(s.Vessels) != 0 || len(s.Cargo) != 0 {
		t.Fatalf("rejected commands changed state")
	}
}

func TestUpgrades(t *testing.T) {
	s, ports := openSea(t, quietTuning(), world.Pt(150, 300), world.Pt(650, 300))

	if err := s.UpgradePort(ports[0]); err != nil {
		t.Fatal(err)
	}
	p := s.PortIndex[ports[0]]
	if p.Capacity != 45 || p.ExchangeSpeed != 1.5 || p.UpgradeLevel != 1 {
		t.Fatalf("after one upgrade %+v", p)
	}
	if err := s.UpgradePort(ports[0]); err != nil {
		t.Fatal(err)
	}
	if p.Capacity != 67 {
		t.Fatalf("capacity %d, want floor(45*1.5)=67", p.Capacity)
	}

	res := mustDispatch(t, s, CreateLane{Ports: ports})
	if err := s.UpgradeVessel(res.Vessel); err != nil {
		t.Fatal(err)
	}
	v := s.VesselIndex[res.Vessel]
	if v.Capacity != 12 || v.UpgradeLevel != 1 {
		t.Fatalf("vessel after upgrade %+v", v)
	}
}

func TestLaneCommands(t *testing.T) {
	s, ports := openSea(t, quietTuning(), world.Pt(150, 300), world.Pt(650, 300), world.Pt(400, 500))
	palette := s.Tuning.LaneColors

	first := mustDispatch(t, s, CreateLane{Ports: ports[:2]})
	second := mustDispatch(t, s, CreateLane{Ports: ports[1:]})
	named := mustDispatch(t, s, CreateLane{Ports: ports[:2], Color: "#123456"})
	if s.LaneIndex[first.Lane].Color != palette[0] || s.LaneIndex[second.Lane].Color != palette[1] {
		t.Fatalf("lane colors do not cycle through the palette")
	}
	if s.LaneIndex[named.Lane].Color != "#123456" {
		t.Fatalf("explicit color ignored")
	}

	lane := s.LaneIndex[first.Lane]
	if len(lane.Vessels) != 1 || lane.Vessels[0] != first.Vessel {
		t.Fatalf("lane vessels %v", lane.Vessels)
	}
	extra, err := s.SpawnVessel(first.Lane)
	if err != nil {
		t.Fatal(err)
	}
	if len(lane.Vessels) != 2 || s.VesselIndex[extra].Capacity != 6 {
		t.Fatalf("spawned vessel not attached")
	}

	mustDispatch(t, s, SetLanePorts{Lane: first.Lane, Ports: ports})
	if len(lane.Ports) != 3 {
		t.Fatalf("lane ports %v", lane.Ports)
	}
	for i, id := range ports {
		found := false
		for _, p := range lane.Path {
			if p == s.PortIndex[id].Position {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("port %d is not a way-point of the rerouted lane", i)
		}
	}

	v := s.VesselIndex[extra]
	v.PathIndex = len(lane.Path) - 1
	mustDispatch(t, s, SetLanePorts{Lane: first.Lane, Ports: ports[:2]})
	if v.PathIndex != len(lane.Path)-1 {
		t.Fatalf("path index %d not clamped into %d way-points", v.PathIndex, len(lane.Path))
	}

	path, err := s.ComputeLane(ports[1:])
	if err != nil || len(path) < 2 {
		t.Fatalf("ComputeLane: %v %v", path, err)
	}
}

func TestRerouteKeepsDockedVesselAtItsPort(t *testing.T) {
	s, ports := openSea(t, quietTuning(), world.Pt(150, 300), world.Pt(400, 300), world.Pt(650, 300))
	res := mustDispatch(t, s, CreateLane{Ports: ports})
	v := s.VesselIndex[res.Vessel]
	dock := s.PortIndex[ports[1]].Position

	const dt = 1.0 / 60
	for i := 0; i < 1000 && v.State != Docked; i++ {
		s.AdvanceSimulation(dt)
	}
	if v.State != Docked || v.DockedAt != ports[1] {
		t.Fatalf("vessel %+v did not dock at the middle port", v)
	}

	mustDispatch(t, s, SetLanePorts{Lane: res.Lane, Ports: []PortID{ports[1], ports[0]}})
	if v.State != Docked || v.PathIndex != 0 || v.Position != dock {
		t.Fatalf("rerouted docked vessel at index %d position %v, want index 0 at %v", v.PathIndex, v.Position, dock)
	}
	for i := 0; i < 1000 && v.State == Docked; i++ {
		s.AdvanceSimulation(dt)
	}
	if d := world.Distance(v.Position, dock); d > 5 {
		t.Fatalf("vessel cast off %.1f units away from its dock port", d)
	}

	for i := 0; i < 3000 && !(v.State == Docked && v.DockedAt == ports[1]); i++ {
		s.AdvanceSimulation(dt)
	}
	if v.State != Docked || v.DockedAt != ports[1] {
		t.Fatalf("vessel never returned to the middle port")
	}
	mustDispatch(t, s, SetLanePorts{Lane: res.Lane, Ports: []PortID{ports[0], ports[2]}})
	if v.State != Underway || v.DockedAt != 0 || v.DockElapsed != 0 {
		t.Fatalf("vessel still docked at a port the lane dropped: %+v", v)
	}
	if v.Position != s.LaneIndex[res.Lane].Path[v.PathIndex] {
		t.Fatalf("vessel position %v is not a way-point", v.Position)
	}
}
