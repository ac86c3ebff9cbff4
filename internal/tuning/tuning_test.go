package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	d := Default()
	if err := d.Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
	if got := d.OverflowLimit(); got != 180 {
		t.Fatalf("OverflowLimit()=%v want 180", got)
	}
	if got := d.DockRadius(); got != 14 {
		t.Fatalf("DockRadius()=%v want 14", got)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("time:\n  seconds_per_day: 20\nvessels:\n  speed: 150\n")
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Time.SecondsPerDay != 20 || got.Vessels.Speed != 150 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Time.OverflowDays != 3 || got.Ports.BaseCapacity != 30 || got.Routing.CellSize != 24 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestLoadShippedFile(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load shipped tuning: %v", err)
	}
	if got.Routing.Tolerance != 2.5 || len(got.LaneColors) != 8 {
		t.Fatalf("unexpected shipped tuning: %+v", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("vessels:\n  speed: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error for negative speed")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
