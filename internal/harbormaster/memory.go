package harbormaster

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 20

// CycleRecord captures what happened in a single harbormaster cycle.
type CycleRecord struct {
	Tick        uint64 `json:"tick"`
	Day         int    `json:"day"`
	Action      string `json:"action"`
	Target      uint64 `json:"target,omitempty"`
	CrisisLevel string `json:"crisis_level"`
	Delivered   uint64 `json:"delivered"`
	Failed      bool   `json:"failed,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent cycle records persisted at Path.
// An empty Path keeps the memory in process only.
type CycleMemory struct {
	Path    string        `json:"-"`
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{Path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("harbormaster memory unreadable, starting fresh", "error", err)
		}
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("harbormaster memory corrupted, starting fresh", "error", err)
		return &CycleMemory{Path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m.Path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal harbormaster memory", "error", err)
		return
	}
	if err := os.WriteFile(m.Path, data, 0644); err != nil {
		slog.Error("failed to write harbormaster memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords. A record from an
// earlier tick than the newest one means the simulation restarted, so the
// old history no longer applies.
func (m *CycleMemory) Record(r CycleRecord) {
	if n := len(m.Records); n > 0 && r.Tick < m.Records[n-1].Tick {
		m.Records = nil
	}
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Recent reports whether action was taken on target within the last n cycles.
func (m *CycleMemory) Recent(action string, target uint64, n int) bool {
	start := max(0, len(m.Records)-n)
	for _, r := range m.Records[start:] {
		if r.Action == action && r.Target == target {
			return true
		}
	}
	return false
}

// Summary renders the last n cycles, one per line.
func (m *CycleMemory) Summary(n int) string {
	var b strings.Builder
	start := max(0, len(m.Records)-n)
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "day %d tick %d: %s", r.Day, r.Tick, r.Action)
		if r.Target != 0 {
			fmt.Fprintf(&b, " #%d", r.Target)
		}
		if r.Failed {
			b.WriteString(" (failed)")
		}
		fmt.Fprintf(&b, ", crisis=%s, delivered=%d\n", r.CrisisLevel, r.Delivered)
	}
	return b.String()
}
