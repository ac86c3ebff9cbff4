package harbormaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CommandResult is the response from the admin command endpoints.
type CommandResult struct {
	Lane        uint64   `json:"lane,omitempty"`
	Vessel      uint64   `json:"vessel,omitempty"`
	Port        uint64   `json:"port,omitempty"`
	Cargo       []uint64 `json:"cargo,omitempty"`
	Description string   `json:"description"`
}

// Actor executes decisions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act sends the admin request matching d. A none decision is an error.
func (a *Actor) Act(ctx context.Context, d *Decision) (*CommandResult, error) {
	var path string
	var payload any
	switch d.Action {
	case ActionCreateLane:
		path, payload = "/api/v1/lanes", map[string]any{"ports": d.Ports}
	case ActionSpawnVessel:
		path = fmt.Sprintf("/api/v1/lanes/%d/vessels", d.Lane)
	case ActionUpgradePort:
		path = fmt.Sprintf("/api/v1/ports/%d/upgrade", d.Port)
	case ActionUpgradeVessel:
		path = fmt.Sprintf("/api/v1/vessels/%d/upgrade", d.Vessel)
	default:
		return nil, fmt.Errorf("nothing to act on for action %q", d.Action)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", d.Action, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s failed (%d): %s", d.Action, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result CommandResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
