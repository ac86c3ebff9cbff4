package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/cargo-current/internal/engine"
)

var errInvalidRequest = errors.New("invalid request")

const maxBodyBytes = 64 << 10

// Request body schemas for the admin endpoints.
var (
	createLaneSchema = jsonschema.MustCompileString("create_lane.json", `{
		"type": "object",
		"required": ["ports"],
		"additionalProperties": false,
		"properties": {
			"ports": {"type": "array", "minItems": 2, "items": {"type": "integer", "minimum": 1}},
			"color": {"type": "string", "pattern": "^#[0-9A-Fa-f]{6}$"}
		}
	}`)
	lanePortsSchema = jsonschema.MustCompileString("lane_ports.json", `{
		"type": "object",
		"required": ["ports"],
		"additionalProperties": false,
		"properties": {
			"ports": {"type": "array", "minItems": 2, "items": {"type": "integer", "minimum": 1}}
		}
	}`)
	injectCargoSchema = jsonschema.MustCompileString("inject_cargo.json", `{
		"type": "object",
		"required": ["destination", "count"],
		"additionalProperties": false,
		"properties": {
			"destination": {"type": "integer", "minimum": 1},
			"count": {"type": "integer", "minimum": 1, "maximum": 1000}
		}
	}`)
	speedSchema = jsonschema.MustCompileString("speed.json", `{
		"type": "object",
		"required": ["speed"],
		"additionalProperties": false,
		"properties": {
			"speed": {"type": "number", "minimum": 0, "maximum": 1000}
		}
	}`)
)

// decodeValid reads the body, validates it against schema and decodes it into dst.
func decodeValid(r *http.Request, schema *jsonschema.Schema, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errInvalidRequest, err)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: invalid json", errInvalidRequest)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad id %q", errInvalidRequest, chi.URLParam(r, "id"))
	}
	return id, nil
}

func (s *Server) dispatch(w http.ResponseWriter, status int, cmd engine.Command) {
	res, err := s.Sim.Dispatch(cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, status, res)
}

func (s *Server) handleCreateLane(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateLane
	if err := decodeValid(r, createLaneSchema, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, http.StatusCreated, req)
}

func (s *Server) handleSetLanePorts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Ports []engine.PortID `json:"ports"`
	}
	if err := decodeValid(r, lanePortsSchema, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, http.StatusOK, engine.SetLanePorts{Lane: engine.LaneID(id), Ports: req.Ports})
}

func (s *Server) handleSpawnVessel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, http.StatusCreated, engine.SpawnVessel{Lane: engine.LaneID(id)})
}

func (s *Server) handleUpgradePort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, http.StatusOK, engine.UpgradePort{Port: engine.PortID(id)})
}

func (s *Server) handleUpgradeVessel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, http.StatusOK, engine.UpgradeVessel{Vessel: engine.VesselID(id)})
}

func (s *Server) handleInjectCargo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Destination engine.PortID `json:"destination"`
		Count       int           `json:"count"`
	}
	if err := decodeValid(r, injectCargoSchema, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, http.StatusOK, engine.InjectCargo{
		Port:        engine.PortID(id),
		Destination: req.Destination,
		Count:       req.Count,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := decodeValid(r, speedSchema, &req); err != nil {
		writeError(w, err)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}
