package engine

import (
	"encoding/json"
	"testing"

	"github.com/talgya/cargo-current/internal/world"
)

func TestVesselJSONKeepsState(t *testing.T) {
	for _, state := range []VesselState{Underway, Docked} {
		in := Vessel{ID: 7, Lane: 3, Position: world.Pt(10, 20), State: state, DockedAt: 2}
		raw, err := json.Marshal(in)
		if err != nil {
			t.Fatal(err)
		}
		var out Vessel
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if out.State != state || out.ID != in.ID || out.DockedAt != in.DockedAt {
			t.Fatalf("round trip of %s gave %+v", raw, out)
		}
	}

	var v Vessel
	if err := json.Unmarshal([]byte(`{"state":"sailing"}`), &v); err == nil {
		t.Fatal("unknown state accepted")
	}
}
