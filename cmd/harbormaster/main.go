// Command harbormaster runs the autonomous harbor operator for Cargo Current.
// It observes the simulation, picks a command from fixed rules, and issues it
// through the admin API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/cargo-current/internal/harbormaster"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("HARBORMASTER_API_URL", "http://localhost")
	adminKey := os.Getenv("CARGOSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("HARBORMASTER_INTERVAL", 30)
	memoryPath := envOrDefault("HARBORMASTER_MEMORY", "harbormaster_memory.json")

	if adminKey == "" {
		slog.Error("CARGOSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("Cargo Current harbormaster starting",
		"api_url", apiURL,
		"interval", interval,
	)

	op := &harbormaster.Operator{
		Observer: harbormaster.NewObserver(apiURL),
		Actor:    harbormaster.NewActor(apiURL, adminKey),
		Memory:   harbormaster.LoadMemory(memoryPath),
		Policy:   harbormaster.DefaultPolicy(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("waiting for cargosim API...")
	if err := waitForAPI(ctx, apiURL); err != nil {
		slog.Error("cargosim API unavailable", "error", err)
		os.Exit(1)
	}

	// Run first cycle immediately.
	runCycle(ctx, op)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, op)
		case <-ctx.Done():
			slog.Info("received signal, shutting down")
			fmt.Println("Harbormaster stopped.")
			return
		}
	}
}

func runCycle(ctx context.Context, op *harbormaster.Operator) {
	decision, err := op.RunCycle(ctx)
	if err != nil {
		slog.Error("harbormaster cycle failed", "error", err)
		return
	}
	if decision.Action == harbormaster.ActionNone {
		slog.Info("harbormaster cycle complete, no command")
	}
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

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Gives up after 5 minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("cargosim API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready within 5 minutes")
		}
		slog.Info("cargosim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
