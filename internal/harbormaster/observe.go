// Package harbormaster implements the autonomous harbor operator.
// It observes the simulation via the API, triages port pressure, picks at
// most one command per cycle from fixed rules, and issues it through the
// admin endpoints.
package harbormaster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/cargo-current/internal/world"
)

// HarborSnapshot holds all data collected during an observation cycle.
type HarborSnapshot struct {
	Status  HarborStatus `json:"status"`
	Ports   []PortInfo   `json:"ports"`
	Lanes   []LaneInfo   `json:"lanes"`
	Vessels []VesselInfo `json:"vessels"`
}

// HarborStatus mirrors GET /api/v1/status.
type HarborStatus struct {
	Name      string  `json:"name"`
	Run       string  `json:"run"`
	Tick      uint64  `json:"tick"`
	SimTime   string  `json:"sim_time"`
	Delivered uint64  `json:"delivered"`
	GameOver  bool    `json:"game_over"`
	Speed     float64 `json:"speed"`
	Running   bool    `json:"running"`
	Stats     struct {
		Day           int     `json:"day"`
		Ports         int     `json:"ports"`
		Lanes         int     `json:"lanes"`
		Vessels       int     `json:"vessels"`
		Waiting       int     `json:"waiting"`
		InTransit     int     `json:"in_transit"`
		Overflowing   int     `json:"overflowing"`
		WorstOverflow float64 `json:"worst_overflow"`
	} `json:"stats"`
}

// PortInfo mirrors items from GET /api/v1/ports.
type PortInfo struct {
	ID              uint64      `json:"id"`
	Name            string      `json:"name"`
	Position        world.Point `json:"position"`
	Category        uint8       `json:"category"`
	Capacity        int         `json:"capacity"`
	Waiting         int         `json:"waiting"`
	Overflowing     bool        `json:"overflowing"`
	OverflowPercent float64     `json:"overflow_percent"`
	UpgradeLevel    int         `json:"upgrade_level"`
}

// LaneInfo mirrors items from GET /api/v1/lanes.
type LaneInfo struct {
	ID      uint64   `json:"id"`
	Ports   []uint64 `json:"ports"`
	Vessels []uint64 `json:"vessels"`
	Length  float64  `json:"length"`
}

// VesselInfo mirrors items from GET /api/v1/vessels.
type VesselInfo struct {
	ID           uint64   `json:"id"`
	Lane         uint64   `json:"lane"`
	Hold         []uint64 `json:"hold"`
	Capacity     int      `json:"capacity"`
	UpgradeLevel int      `json:"upgrade_level"`
	State        string   `json:"state"`
}

// Observer fetches harbor state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the four read endpoints and returns a HarborSnapshot.
func (o *Observer) Observe(ctx context.Context) (*HarborSnapshot, error) {
	snap := &HarborSnapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/ports", &snap.Ports); err != nil {
		return nil, fmt.Errorf("fetch ports: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/lanes", &snap.Lanes); err != nil {
		return nil, fmt.Errorf("fetch lanes: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/vessels", &snap.Vessels); err != nil {
		return nil, fmt.Errorf("fetch vessels: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
