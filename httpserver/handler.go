// Package httpserver implements the node-side HTTP surface a compute node
// advertises to the discovery layer: /resources, /attestation and /health.
// It backs the simnode development binary, which stands in for a real node
// when exercising discovery locally.
package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/jejunetwork/compute-registry/prober"
)

// NodeProfile is the capacity a simulated node advertises. It is loadable
// from a YAML file so local setups can model heterogeneous fleets.
type NodeProfile struct {
	CPUCores  uint64 `yaml:"cpu_cores"`
	MemoryGB  uint64 `yaml:"memory_gb"`
	StorageGB uint64 `yaml:"storage_gb"`
}

// LoadNodeProfile reads a YAML profile.
func LoadNodeProfile(r io.Reader) (NodeProfile, error) {
	var p NodeProfile
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return NodeProfile{}, err
	}
	return p, nil
}

// Handler serves the node collaborator endpoints. Responses use the same
// wire types the prober decodes, so the two sides cannot drift apart.
type Handler struct {
	profile     NodeProfile
	attestation prober.AttestationReport
	log         *slog.Logger
}

// NewHandler creates a handler advertising the given profile and
// attestation document.
func NewHandler(profile NodeProfile, attestation prober.AttestationReport, log *slog.Logger) *Handler {
	return &Handler{
		profile:     profile,
		attestation: attestation,
		log:         log,
	}
}

// HandleResources serves the advertised capacity document.
func (h *Handler) HandleResources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, prober.ResourceReport{
		CPUCores:  h.profile.CPUCores,
		MemoryGB:  h.profile.MemoryGB,
		StorageGB: h.profile.StorageGB,
	})
}

// HandleAttestation serves the node's attestation document.
func (h *Handler) HandleAttestation(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.attestation)
}

// HandleHealth answers 200 while the process is up.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
