package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/cargo-current/internal/cargo"
	"github.com/talgya/cargo-current/internal/engine"
	"github.com/talgya/cargo-current/internal/entropy"
	"github.com/talgya/cargo-current/internal/persistence"
	"github.com/talgya/cargo-current/internal/tuning"
	"github.com/talgya/cargo-current/internal/world"
)

const testKey = "secret"

type fixture struct {
	srv   *Server
	http  *httptest.Server
	ports []engine.PortID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tn := tuning.Default()
	tn.Cargo.SpawnChance = 0
	tn.Ports.SpawnChance = 0
	sim := engine.NewSimulation(world.NewMap(800, 600), tn, entropy.NewSource(1))
	ports := []engine.PortID{
		sim.AddPort(world.PortSite{Position: world.Pt(150, 300), Name: "West"}, cargo.CategoryCircle),
		sim.AddPort(world.PortSite{Position: world.Pt(650, 300), Name: "East"}, cargo.CategoryCircle),
	}
	srv := &Server{Sim: sim, Eng: engine.NewEngine(tn), AdminKey: testKey}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, http: ts, ports: ports}
}

func (f *fixture) do(t *testing.T, method, path, body string, auth bool) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func (f *fixture) expect(t *testing.T, method, path, body string, auth bool, status int) []byte {
	t.Helper()
	resp, raw := f.do(t, method, path, body, auth)
	if resp.StatusCode != status {
		t.Fatalf("%s %s: status %d (%s), want %d", method, path, resp.StatusCode, raw, status)
	}
	return raw
}

func TestStatusAndReadEndpoints(t *testing.T) {
	f := newFixture(t)
	raw := f.expect(t, http.MethodGet, "/api/v1/status", "", false, http.StatusOK)
	var status map[string]any
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatal(err)
	}
	if status["name"] != "Cargo Current" || status["game_over"] != false || status["speed"] != 1.0 {
		t.Fatalf("status %v", status)
	}

	var ports []map[string]any
	if err := json.Unmarshal(f.expect(t, http.MethodGet, "/api/v1/ports", "", false, http.StatusOK), &ports); err != nil {
		t.Fatal(err)
	}
	if len(ports) != 2 || ports[0]["name"] != "West" {
		t.Fatalf("ports %v", ports)
	}

	var m map[string]any
	if err := json.Unmarshal(f.expect(t, http.MethodGet, "/api/v1/map", "", false, http.StatusOK), &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["bounds"]; !ok {
		t.Fatalf("map without bounds: %v", m)
	}
	grid, _ := m["routing"].(map[string]any)
	if grid["cols"] != 34.0 || grid["rows"] != 25.0 || grid["free_cells"] != 850.0 || grid["clearance"] != 12.0 {
		t.Fatalf("routing grid %v", grid)
	}

	f.expect(t, http.MethodGet, "/api/v1/stats/history", "", false, http.StatusServiceUnavailable)
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t)
	body := `{"ports":[1,2]}`
	f.expect(t, http.MethodPost, "/api/v1/lanes", body, false, http.StatusUnauthorized)

	f.srv.AdminKey = ""
	f.expect(t, http.MethodPost, "/api/v1/lanes", body, true, http.StatusForbidden)
}

func TestLaneLifecycle(t *testing.T) {
	f := newFixture(t)
	body := `{"ports":[` + strconv.FormatUint(uint64(f.ports[0]), 10) + `,` + strconv.FormatUint(uint64(f.ports[1]), 10) + `]}`
	raw := f.expect(t, http.MethodPost, "/api/v1/lanes", body, true, http.StatusCreated)
	var res engine.CommandResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if res.Lane == 0 || res.Vessel == 0 {
		t.Fatalf("create lane result %+v", res)
	}
	lane := strconv.FormatUint(uint64(res.Lane), 10)
	vessel := strconv.FormatUint(uint64(res.Vessel), 10)

	f.expect(t, http.MethodPost, "/api/v1/lanes/"+lane+"/vessels", "", true, http.StatusCreated)
	f.expect(t, http.MethodPost, "/api/v1/vessels/"+vessel+"/upgrade", "", true, http.StatusOK)
	f.expect(t, http.MethodPut, "/api/v1/lanes/"+lane+"/ports", body, true, http.StatusOK)

	var vessels []engine.Vessel
	if err := json.Unmarshal(f.expect(t, http.MethodGet, "/api/v1/vessels", "", false, http.StatusOK), &vessels); err != nil {
		t.Fatal(err)
	}
	if len(vessels) != 2 || vessels[0].Capacity != 12 {
		t.Fatalf("vessels %+v", vessels)
	}

	var lanes []map[string]any
	if err := json.Unmarshal(f.expect(t, http.MethodGet, "/api/v1/lanes", "", false, http.StatusOK), &lanes); err != nil {
		t.Fatal(err)
	}
	if len(lanes) != 1 || lanes[0]["length"].(float64) != 500 {
		t.Fatalf("lanes %v", lanes)
	}
}

func TestAdminValidationAndErrors(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/api/v1/lanes", `{"ports":[1]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/lanes", `{"ports":[1,2],"color":"red"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/lanes", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/lanes", `{"ports":[1,99]}`, http.StatusNotFound},
		{http.MethodPost, "/api/v1/lanes/abc/vessels", ``, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/lanes/42/vessels", ``, http.StatusNotFound},
		{http.MethodPost, "/api/v1/ports/99/upgrade", ``, http.StatusNotFound},
		{http.MethodPost, "/api/v1/vessels/99/upgrade", ``, http.StatusNotFound},
		{http.MethodPost, "/api/v1/ports/1/cargo", `{"destination":1,"count":3}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/ports/1/cargo", `{"destination":2,"count":0}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/speed", `{"speed":-1}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		f.expect(t, c.method, c.path, c.body, true, c.status)
	}
}

func TestInjectCargoAndSpeed(t *testing.T) {
	f := newFixture(t)
	f.expect(t, http.MethodPost, "/api/v1/ports/1/cargo", `{"destination":2,"count":4}`, true, http.StatusOK)
	if got := f.srv.Sim.Stats().Waiting; got != 4 {
		t.Fatalf("waiting %d, want 4", got)
	}

	f.expect(t, http.MethodPost, "/api/v1/speed", `{"speed":3}`, true, http.StatusOK)
	if f.srv.Eng.Speed() != 3 {
		t.Fatalf("speed %v", f.srv.Eng.Speed())
	}
}

func TestAdminRateLimit(t *testing.T) {
	f := newFixture(t)
	f.http.Close()
	f.srv.AdminRate = 2
	f.http = httptest.NewServer(f.srv.Routes())
	defer f.http.Close()

	for i := 0; i < 2; i++ {
		f.expect(t, http.MethodPost, "/api/v1/ports/1/upgrade", "", true, http.StatusOK)
	}
	resp, _ := f.do(t, http.MethodPost, "/api/v1/ports/1/upgrade", "", true)
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("third request: status %d", resp.StatusCode)
	}
}

func TestRunsEndpoint(t *testing.T) {
	f := newFixture(t)
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	run, err := db.StartRun(1, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(run, engine.GameOverSummary{Day: 3, Delivered: 12}, "overflow"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveDailyStats(run, engine.SimStats{Day: 1, Delivered: 4}); err != nil {
		t.Fatal(err)
	}
	f.srv.DB = db
	f.srv.RunID = run

	var runs []persistence.Run
	if err := json.Unmarshal(f.expect(t, http.MethodGet, "/api/v1/runs", "", false, http.StatusOK), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Delivered != 12 {
		t.Fatalf("runs %+v", runs)
	}
	var history []persistence.DailyStats
	if err := json.Unmarshal(f.expect(t, http.MethodGet, "/api/v1/stats/history", "", false, http.StatusOK), &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Delivered != 4 {
		t.Fatalf("history %+v", history)
	}
}

func TestStreamPushesEvents(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := f.srv.Sim.Dispatch(engine.UpgradePort{Port: f.ports[0]}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e engine.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.Category != "upgrade_port" {
		t.Fatalf("event %+v", e)
	}
}

func TestSeqFilterDropsReplayedEvents(t *testing.T) {
	var f seqFilter
	var got []uint64
	// Replay of 1..3, then the channel delivering 3 again before 4 and 5.
	for _, seq := range []uint64{1, 2, 3, 3, 4, 2, 5} {
		if f.admit(engine.Event{Seq: seq}) {
			got = append(got, seq)
		}
	}
	if len(got) != 5 || got[0] != 1 || got[4] != 5 {
		t.Fatalf("admitted %v, want 1..5 once each", got)
	}
}

func TestStreamSendsEachEventOnce(t *testing.T) {
	f := newFixture(t)
	if _, err := f.srv.Sim.Dispatch(engine.UpgradePort{Port: f.ports[0]}); err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := f.srv.Sim.Dispatch(engine.UpgradePort{Port: f.ports[1]}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for want := uint64(1); want <= 2; want++ {
		var e engine.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read: %v", err)
		}
		if e.Seq != want || e.Category != "upgrade_port" {
			t.Fatalf("event %+v, want upgrade_port #%d", e, want)
		}
	}
}
