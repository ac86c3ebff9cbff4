package main

import (
	"testing"

	"github.com/talgya/cargo-current/internal/engine"
)

func TestGameOverLine(t *testing.T) {
	cases := []struct {
		summary engine.GameOverSummary
		want    string
	}{
		{
			engine.GameOverSummary{PortName: "Alder", Day: 0, Delivered: 7},
			"Alder overflowed. The harbor held for 1 day and delivered 7 cargo units.",
		},
		{
			engine.GameOverSummary{PortName: "Birch", Day: 11, Delivered: 12345},
			"Birch overflowed. The harbor held for 12 days and delivered 12,345 cargo units.",
		},
	}
	for _, c := range cases {
		if got := gameOverLine(c.summary); got != c.want {
			t.Fatalf("gameOverLine(%+v) = %q, want %q", c.summary, got, c.want)
		}
	}
}

func TestEnvIntOrDefault(t *testing.T) {
	t.Setenv("CARGOSIM_TEST_INT", "42")
	if got := envIntOrDefault("CARGOSIM_TEST_INT", 1); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	t.Setenv("CARGOSIM_TEST_INT", "many")
	if got := envIntOrDefault("CARGOSIM_TEST_INT", 1); got != 1 {
		t.Fatalf("unparsable value gave %d, want default", got)
	}
}
