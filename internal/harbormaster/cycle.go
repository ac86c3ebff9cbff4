package harbormaster

import (
	"context"
	"fmt"
	"log/slog"
)

// Operator bundles the pieces of one observe, triage, decide, act cycle.
type Operator struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
	Policy   Policy
}

// RunCycle executes one cycle and records it in memory. The returned
// decision is nil only when observation failed.
func (o *Operator) RunCycle(ctx context.Context) (*Decision, error) {
	slog.Info("harbormaster cycle starting")

	snap, err := o.Observer.Observe(ctx)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	health := Triage(snap)
	slog.Info("observation complete",
		"day", snap.Status.Stats.Day,
		"ports", len(snap.Ports),
		"lanes", len(snap.Lanes),
		"overflowing", health.Overflowing,
		"stranded", health.Stranded,
		"crisis", health.CrisisLevel,
	)

	decision := Decide(snap, health, o.Memory, o.Policy)
	slog.Info("decision made", "action", decision.Action, "rationale", decision.Rationale)

	rec := CycleRecord{
		Tick:        snap.Status.Tick,
		Day:         snap.Status.Stats.Day,
		Action:      decision.Action,
		Target:      decision.Target(),
		CrisisLevel: health.CrisisLevel,
		Delivered:   snap.Status.Delivered,
		Rationale:   decision.Rationale,
	}

	var actErr error
	if decision.Action != ActionNone {
		result, err := o.Actor.Act(ctx, decision)
		if err != nil {
			rec.Failed = true
			actErr = fmt.Errorf("act: %w", err)
		} else {
			slog.Info("command executed", "action", decision.Action, "details", result.Description)
		}
	}

	if o.Memory != nil {
		o.Memory.Record(rec)
		o.Memory.Save()
	}
	return decision, actErr
}
