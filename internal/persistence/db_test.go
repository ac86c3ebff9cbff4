package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/cargo-current/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "scoreboard.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	low, err := db.StartRun(1, "Map(800x600, landmasses=5)")
	if err != nil {
		t.Fatal(err)
	}
	high, err := db.StartRun(2, "Map(800x600, landmasses=6)")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.StartRun(3, "unfinished"); err != nil {
		t.Fatal(err)
	}

	if err := db.FinishRun(low, engine.GameOverSummary{Day: 4, Delivered: 20, Elapsed: 250}, "overflow"); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(high, engine.GameOverSummary{Day: 9, Delivered: 140, Elapsed: 560}, "overflow"); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun("missing", engine.GameOverSummary{}, "overflow"); err == nil {
		t.Fatalf("finishing an unknown run should fail")
	}

	runs, err := db.TopRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("TopRuns returned %d runs, want the 2 finished ones", len(runs))
	}
	if runs[0].ID != high || runs[0].Delivered != 140 || runs[0].Days != 9 || runs[0].FinishedAt == nil {
		t.Fatalf("best run %+v", runs[0])
	}

	r, err := db.GetRun(low)
	if err != nil {
		t.Fatal(err)
	}
	if r.Seed != 1 || r.Cause != "overflow" || r.Elapsed != 250 {
		t.Fatalf("GetRun %+v", r)
	}
}

func TestStatsHistory(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun(7, "test")
	if err != nil {
		t.Fatal(err)
	}
	for day := 1; day <= 5; day++ {
		st := engine.SimStats{Day: day, Ports: 3 + day, Delivered: uint64(day * 10), WorstOverflow: float64(day)}
		if err := db.SaveDailyStats(run, st); err != nil {
			t.Fatalf("SaveDailyStats(day %d): %v", day, err)
		}
	}
	// Rewriting a day replaces it.
	if err := db.SaveDailyStats(run, engine.SimStats{Day: 5, Delivered: 55}); err != nil {
		t.Fatal(err)
	}

	rows, err := db.StatsHistory(run, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0].Day != 3 || rows[2].Day != 5 {
		t.Fatalf("history %+v", rows)
	}
	if rows[2].Delivered != 55 {
		t.Fatalf("day 5 delivered %d, want the replaced 55", rows[2].Delivered)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun(7, "test")
	if err != nil {
		t.Fatal(err)
	}
	events := []engine.Event{
		{Tick: 10, Time: 1.5, Day: 0, Category: "create_lane", Description: "lane 4 opened"},
		{Tick: 20, Time: 3, Day: 0, Category: "delivery", Description: "cargo delivered", Meta: map[string]any{"count": 2}},
	}
	if err := db.SaveEvents(run, events); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveEvents(run, nil); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentEvents(run, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Category != "delivery" || got[1].Category != "create_lane" {
		t.Fatalf("events %+v", got)
	}
	// JSON numbers come back as float64.
	if got[0].Meta["count"] != float64(2) {
		t.Fatalf("meta %+v", got[0].Meta)
	}
	if got[1].Meta != nil {
		t.Fatalf("empty meta should stay nil, got %+v", got[1].Meta)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("last_run", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("last_run", "def"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("last_run")
	if err != nil || v != "def" {
		t.Fatalf("GetMeta=%q,%v", v, err)
	}
	if _, err := db.GetMeta("nope"); err == nil {
		t.Fatalf("missing key should return an error")
	}
}
