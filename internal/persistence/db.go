// Package persistence keeps the scoreboard: every run, its daily statistics
// and its notable events, in SQLite.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/cargo-current/internal/engine"
)

// DB wraps a SQLite connection for the scoreboard.
type DB struct {
	conn *sqlx.DB
}

// Run is one game from world generation to game over.
type Run struct {
	ID         string  `db:"id" json:"id"`
	Seed       int64   `db:"seed" json:"seed"`
	World      string  `db:"world" json:"world"`
	StartedAt  string  `db:"started_at" json:"started_at"`
	FinishedAt *string `db:"finished_at" json:"finished_at,omitempty"`
	Days       int     `db:"days" json:"days"`
	Delivered  uint64  `db:"delivered" json:"delivered"`
	Elapsed    float64 `db:"elapsed" json:"elapsed"`
	Cause      string  `db:"cause" json:"cause"`
}

// DailyStats is the end-of-day summary row for a run.
type DailyStats struct {
	RunID         string  `db:"run_id" json:"-"`
	Day           int     `db:"day" json:"day"`
	Ports         int     `db:"ports" json:"ports"`
	Lanes         int     `db:"lanes" json:"lanes"`
	Vessels       int     `db:"vessels" json:"vessels"`
	Delivered     uint64  `db:"delivered" json:"delivered"`
	Waiting       int     `db:"waiting" json:"waiting"`
	InTransit     int     `db:"in_transit" json:"in_transit"`
	Overflowing   int     `db:"overflowing" json:"overflowing"`
	WorstOverflow float64 `db:"worst_overflow" json:"worst_overflow"`
}

type eventRow struct {
	Tick        uint64  `db:"tick"`
	Time        float64 `db:"time"`
	Day         int     `db:"day"`
	Category    string  `db:"category"`
	Description string  `db:"description"`
	MetaJSON    string  `db:"meta_json"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		world TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		days INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0,
		elapsed REAL NOT NULL DEFAULT 0,
		cause TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		run_id TEXT NOT NULL REFERENCES runs(id),
		day INTEGER NOT NULL,
		ports INTEGER NOT NULL,
		lanes INTEGER NOT NULL,
		vessels INTEGER NOT NULL,
		delivered INTEGER NOT NULL,
		waiting INTEGER NOT NULL,
		in_transit INTEGER NOT NULL,
		overflowing INTEGER NOT NULL,
		worst_overflow REAL NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		time REAL NOT NULL,
		day INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);
	CREATE INDEX IF NOT EXISTS idx_runs_delivered ON runs(delivered);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StartRun records a new run and returns its ID.
func (db *DB) StartRun(seed int64, world string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, world, started_at) VALUES (?, ?, ?, ?)",
		id, seed, world, now(),
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	slog.Info("run started", "run", id, "seed", seed)
	return id, nil
}

// FinishRun stores the final score of a run.
func (db *DB) FinishRun(runID string, summary engine.GameOverSummary, cause string) error {
	res, err := db.conn.Exec(
		`UPDATE runs SET finished_at = ?, days = ?, delivered = ?, elapsed = ?, cause = ?
		 WHERE id = ?`,
		now(), summary.Day, summary.Delivered, summary.Elapsed, cause, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}

// GetRun returns one run by ID.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID)
	return r, err
}

// TopRuns returns the best finished runs, most cargo delivered first.
func (db *DB) TopRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		`SELECT * FROM runs WHERE finished_at IS NOT NULL
		 ORDER BY delivered DESC, days DESC, started_at ASC LIMIT ?`,
		limit,
	)
	return runs, err
}

// SaveDailyStats writes the summary for one day, replacing any earlier row for it.
func (db *DB) SaveDailyStats(runID string, st engine.SimStats) error {
	_, err := db.conn.NamedExec(
		`INSERT OR REPLACE INTO daily_stats
		 (run_id, day, ports, lanes, vessels, delivered, waiting, in_transit, overflowing, worst_overflow)
		 VALUES (:run_id, :day, :ports, :lanes, :vessels, :delivered, :waiting, :in_transit, :overflowing, :worst_overflow)`,
		DailyStats{
			RunID:         runID,
			Day:           st.Day,
			Ports:         st.Ports,
			Lanes:         st.Lanes,
			Vessels:       st.Vessels,
			Delivered:     st.Delivered,
			Waiting:       st.Waiting,
			InTransit:     st.InTransit,
			Overflowing:   st.Overflowing,
			WorstOverflow: st.WorstOverflow,
		},
	)
	return err
}

// StatsHistory returns the last limit days of a run, oldest first.
func (db *DB) StatsHistory(runID string, limit int) ([]DailyStats, error) {
	var rows []DailyStats
	err := db.conn.Select(&rows,
		`SELECT * FROM (
			SELECT * FROM daily_stats WHERE run_id = ? ORDER BY day DESC LIMIT ?
		 ) ORDER BY day ASC`,
		runID, limit,
	)
	return rows, err
}

// SaveEvents appends events to a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		metaJSON := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("event meta: %w", err)
			}
			metaJSON = string(raw)
		}
		_, err := tx.Exec(
			`INSERT INTO events (run_id, tick, time, day, category, description, meta_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Tick, e.Time, e.Day, e.Category, e.Description, metaJSON,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent limit events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT tick, time, day, category, description, meta_json FROM events
		 WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{
			Tick:        r.Tick,
			Time:        r.Time,
			Day:         r.Day,
			Category:    r.Category,
			Description: r.Description,
		}
		if r.MetaJSON != "" {
			if err := json.Unmarshal([]byte(r.MetaJSON), &e.Meta); err != nil {
				return nil, fmt.Errorf("event meta: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
