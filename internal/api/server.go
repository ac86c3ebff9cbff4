// Package api provides the HTTP API for observing and steering the simulation.
// GET endpoints are public (read-only observation).
// Mutating endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/talgya/cargo-current/internal/cargo"
	"github.com/talgya/cargo-current/internal/engine"
	"github.com/talgya/cargo-current/internal/persistence"
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; history endpoints answer 503 without it.
	RunID    string
	Port     int
	AdminKey string // Bearer token for mutating endpoints. Empty = disabled.

	// Requests per minute per client on admin endpoints. Zero uses the default.
	AdminRate int

	streamConns int32
	upgrader    websocket.Upgrader
}

const (
	maxStreamConns   = 8
	defaultAdminRate = 120
)

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	rate := s.AdminRate
	if rate <= 0 {
		rate = defaultAdminRate
	}
	limiter := NewRateLimiter(rate, time.Minute)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (GET, read-only).
		r.Get("/status", s.handleStatus)
		r.Get("/map", s.handleMap)
		r.Get("/ports", s.handlePorts)
		r.Get("/lanes", s.handleLanes)
		r.Get("/vessels", s.handleVessels)
		r.Get("/events", s.handleEvents)
		r.Get("/stats/history", s.handleStatsHistory)
		r.Get("/runs", s.handleRuns)
		r.Get("/stream", s.handleStream)

		// Admin endpoints (bearer token, rate limited, schema-validated bodies).
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Use(RateLimit(limiter))
			r.Post("/lanes", s.handleCreateLane)
			r.Put("/lanes/{id}/ports", s.handleSetLanePorts)
			r.Post("/lanes/{id}/vessels", s.handleSpawnVessel)
			r.Post("/ports/{id}/upgrade", s.handleUpgradePort)
			r.Post("/ports/{id}/cargo", s.handleInjectCargo)
			r.Post("/vessels/{id}/upgrade", s.handleUpgradeVessel)
			r.Post("/speed", s.handleSpeed)
		})
	})
	return r
}

// Start begins serving the HTTP API in a goroutine and returns the server
// so the caller can shut it down.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CARGOSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"name":      "Cargo Current",
		"run":       s.RunID,
		"tick":      snap.Tick,
		"clock":     snap.Clock,
		"sim_time":  engine.SimTime(snap.Clock.Elapsed, s.Sim.Tuning.Time.SecondsPerDay),
		"delivered": snap.Delivered,
		"created":   snap.Created,
		"game_over": snap.GameOver,
		"stats":     snap.Stats,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

type portView struct {
	engine.Port
	CategoryInfo    cargo.Info `json:"category_info"`
	Waiting         int        `json:"waiting"`
	OverflowPercent float64    `json:"overflow_percent"` // Share of the overflow limit used up
}

func (s *Server) portViews(ports []engine.Port) []portView {
	limit := s.Sim.Tuning.OverflowLimit()
	views := make([]portView, 0, len(ports))
	for _, p := range ports {
		v := portView{Port: p, CategoryInfo: p.Category.Info(), Waiting: len(p.Queue)}
		if p.Overflowing && limit > 0 {
			v.OverflowPercent = 100 * p.OverflowElapsed / limit
		}
		views = append(views, v)
	}
	return views
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	m := s.Sim.Map
	writeJSON(w, map[string]any{
		"bounds":     m.Bounds,
		"landmasses": m.Landmasses,
		"ports":      s.portViews(snap.Ports),
		"lanes":      snap.Lanes,
		"routing":    s.Sim.RoutingGrid(),
	})
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.portViews(s.Sim.Snapshot().Ports))
}

func (s *Server) handleLanes(w http.ResponseWriter, r *http.Request) {
	lanes := s.Sim.Snapshot().Lanes
	router := s.Sim.Router()
	type laneView struct {
		engine.Lane
		Length float64 `json:"length"`
	}
	out := make([]laneView, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, laneView{Lane: l, Length: router.PathLength(l.Path)})
	}
	writeJSON(w, out)
}

func (s *Server) handleVessels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot().Vessels)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.RecentEvents(queryLimit(r, 50, 1000)))
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.DB.StatsHistory(s.RunID, queryLimit(r, 30, 1000))
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		http.Error(w, "stats history unavailable", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.DailyStats{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.TopRuns(queryLimit(r, 10, 100))
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "runs unavailable", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

// queryLimit parses ?limit=, falling back to def and capping at ceiling.
func queryLimit(r *http.Request, def, ceiling int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= ceiling {
			return v
		}
	}
	return def
}

// handleStream upgrades to a websocket, replays the latest events, then pushes
// every new simulation event as JSON, each exactly once and in order.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	defer atomic.AddInt32(&s.streamConns, -1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	// Subscribe before the upgrade so nothing emitted after the handshake is missed.
	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Events emitted between Subscribe and the replay are both in the replay
	// and on the channel; the filter drops the second copy.
	var seen seqFilter
	for _, e := range s.Sim.RecentEvents(50) {
		if !seen.admit(e) {
			continue
		}
		if err := writeEvent(conn, e); err != nil {
			return
		}
	}
	slog.Info("stream client connected", "sub_id", subID)

	// Reader: the client sends nothing we use, but reading surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !seen.admit(e) {
				continue
			}
			if err := writeEvent(conn, e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

// seqFilter admits each event sequence number once, in increasing order.
type seqFilter struct {
	last uint64
}

func (f *seqFilter) admit(e engine.Event) bool {
	if e.Seq <= f.last {
		return false
	}
	f.last = e.Seq
	return true
}

func writeEvent(conn *websocket.Conn, e engine.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(e)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// writeError maps simulation errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnknownPort),
		errors.Is(err, engine.ErrUnknownLane),
		errors.Is(err, engine.ErrUnknownVessel):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrLaneTooShort),
		errors.Is(err, engine.ErrInvalidCargo),
		errors.Is(err, errInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUnroutable),
		errors.Is(err, engine.ErrGameOver):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}
