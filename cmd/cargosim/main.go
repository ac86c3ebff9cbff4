// Command cargosim runs the Cargo Current shipping simulation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/talgya/cargo-current/internal/api"
	"github.com/talgya/cargo-current/internal/engine"
	"github.com/talgya/cargo-current/internal/entropy"
	"github.com/talgya/cargo-current/internal/persistence"
	"github.com/talgya/cargo-current/internal/persistence/journal"
	"github.com/talgya/cargo-current/internal/tuning"
	"github.com/talgya/cargo-current/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Cargo Current, shipping lane simulation")

	tuningPath := envOrDefault("CARGOSIM_TUNING", "configs/tuning.yaml")
	seed := entropy.ResolveSeed(int64(envIntOrDefault("CARGOSIM_SEED", 0)))
	dbPath := envOrDefault("CARGOSIM_DB", "data/cargosim.db")
	journalDir := envOrDefault("CARGOSIM_JOURNAL_DIR", "data/journal")
	apiPort := envIntOrDefault("CARGOSIM_PORT", 8080)

	// ── Tuning ────────────────────────────────────────────────────────
	tn, err := tuning.Load(tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load tuning", "path", tuningPath, "error", err)
			os.Exit(1)
		}
		slog.Warn("tuning file not found, using defaults", "path", tuningPath)
		tn = tuning.Default()
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── World Map (deterministic from seed) ──────────────────────────
	slog.Info("generating world map...", "seed", seed)
	cfg := world.DefaultGenConfig()
	cfg.Seed = seed
	worldMap := world.Generate(cfg)

	sim := engine.NewWorld(worldMap, tn, seed)
	runID, err := db.StartRun(seed, worldMap.String())
	if err != nil {
		slog.Error("failed to start run", "error", err)
		os.Exit(1)
	}
	if err := db.SaveMeta("last_run", runID); err != nil {
		slog.Warn("failed to record last run", "error", err)
	}
	slog.Info("run started",
		"run", runID,
		"landmasses", len(worldMap.Landmasses),
		"ports", len(sim.Ports),
	)

	// ── Event journal and sqlite batches ──────────────────────────────
	events := journal.NewEventJournal(journalDir, runID)
	defer events.Close()

	var batchMu sync.Mutex
	var batch []engine.Event
	flush := func() {
		batchMu.Lock()
		pending := batch
		batch = nil
		batchMu.Unlock()
		if len(pending) == 0 {
			return
		}
		if err := db.SaveEvents(runID, pending); err != nil {
			slog.Error("event save failed", "error", err, "events", len(pending))
		}
	}

	subID, feed := sim.Subscribe()
	var feedDone sync.WaitGroup
	feedDone.Add(1)
	go func() {
		defer feedDone.Done()
		for e := range feed {
			if err := events.WriteEvent(e); err != nil {
				slog.Error("journal write failed", "error", err)
			}
			batchMu.Lock()
			batch = append(batch, e)
			batchMu.Unlock()
		}
	}()

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(tn)
	eng.OnFrame = sim.AdvanceSimulation

	sim.OnDay = func(day int, stats engine.SimStats) {
		if err := db.SaveDailyStats(runID, stats); err != nil {
			slog.Error("daily stats save failed", "error", err)
		}
		flush()
	}
	sim.OnGameOver = func(summary engine.GameOverSummary) {
		if err := db.FinishRun(runID, summary, "overflow"); err != nil {
			slog.Error("failed to finish run", "error", err)
		}
		fmt.Printf("\n%s\n", gameOverLine(summary))
		eng.Stop()
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("CARGOSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("CARGOSIM_ADMIN_KEY not set, admin endpoints will reject every request")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		RunID:    runID,
		Port:     apiPort,
		AdminKey: adminKey,
	}
	httpSrv := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nCargo Current is afloat: %d ports across %d landmasses.\n",
		len(sim.Ports), len(worldMap.Landmasses))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	started := time.Now()
	eng.Run(ctx)

	// ── Shutdown ──────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	sim.Unsubscribe(subID)
	feedDone.Wait()
	flush()

	snap := sim.Snapshot()
	if !snap.GameOver {
		summary := engine.GameOverSummary{
			Day:       snap.Clock.Day,
			Delivered: snap.Delivered,
			Elapsed:   snap.Clock.Elapsed,
		}
		if err := db.FinishRun(runID, summary, "stopped"); err != nil {
			slog.Error("failed to finish run", "error", err)
		}
	}

	slog.Info("simulation stopped",
		"run", runID,
		"delivered", humanize.Comma(int64(snap.Delivered)),
		"wall_time", humanize.RelTime(started, time.Now(), "", ""),
	)
	fmt.Println("Simulation stopped. Run saved.")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// gameOverLine renders the final score. Day 0 counts as the first day held.
func gameOverLine(summary engine.GameOverSummary) string {
	return fmt.Sprintf("%s overflowed. The harbor held for %s and delivered %s cargo units.",
		summary.PortName,
		english.Plural(summary.Day+1, "day", "days"),
		humanize.Comma(int64(summary.Delivered)),
	)
}
