// Package prober performs best-effort liveness and capacity probes against
// node-advertised HTTP endpoints. Probe results enrich already-eligible
// providers; they never gate the trust decision and never abort discovery.
package prober

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/metrics"
)

// Probe timeouts are hard deadlines. A node that cannot answer within them
// is treated as unknown, not as failed.
const (
	ResourceProbeTimeout    = 5 * time.Second
	AttestationProbeTimeout = 10 * time.Second
	HealthProbeTimeout      = 5 * time.Second

	// maxBodySize bounds probe response bodies. Node endpoints are
	// operator-controlled, untrusted input.
	maxBodySize = 1024 * 1024
)

// ResourceReport is the capacity document served by a node's /resources
// endpoint.
type ResourceReport struct {
	CPUCores  uint64 `json:"cpuCores"`
	MemoryGB  uint64 `json:"memoryGb"`
	StorageGB uint64 `json:"storageGb"`
}

// AttestationReport is the wire form of an attestation served by a node's
// /attestation endpoint. Binary fields are hex encoded.
type AttestationReport struct {
	Quote        string `json:"quote"`
	Measurement  string `json:"measurement"`
	ReportData   string `json:"reportData"`
	Timestamp    int64  `json:"timestamp"`
	ProviderKind uint8  `json:"providerKind"`
	Verified     bool   `json:"verified"`
}

// Prober issues the three node probes. All failures - network errors,
// non-2xx statuses, malformed bodies - degrade to the probe's failure value
// (nil or false) with at most a warning log. The prober never retries.
type Prober struct {
	client *http.Client
	log    *slog.Logger
}

// New creates a prober. Deadlines are enforced per probe via context, so
// the shared http.Client carries no global timeout.
func New(log *slog.Logger) *Prober {
	return &Prober{
		client: &http.Client{},
		log:    log,
	}
}

// ProbeResources fetches {endpoint}/resources. Returns nil on any failure.
func (p *Prober) ProbeResources(ctx context.Context, endpoint string) *ResourceReport {
	var report ResourceReport
	if !p.getJSON(ctx, endpoint+"/resources", ResourceProbeTimeout, "resources", &report) {
		return nil
	}
	return &report
}

// ProbeAttestation fetches {endpoint}/attestation and decodes it into the
// normalized attestation form. Returns nil on any failure, including
// malformed hex fields.
func (p *Prober) ProbeAttestation(ctx context.Context, endpoint string) *interfaces.Attestation {
	var report AttestationReport
	if !p.getJSON(ctx, endpoint+"/attestation", AttestationProbeTimeout, "attestation", &report) {
		return nil
	}

	att, err := report.Parse()
	if err != nil {
		p.log.Warn("Malformed attestation probe response", "endpoint", endpoint, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues("attestation").Inc()
		return nil
	}
	return att
}

// ProbeHealth fetches {endpoint}/health and reports whether the node
// answered 2xx in time.
func (p *Prober) ProbeHealth(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		p.log.Warn("Invalid health probe URL", "endpoint", endpoint, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues("health").Inc()
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("Health probe failed", "endpoint", endpoint, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues("health").Inc()
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Warn("Health probe returned non-2xx", "endpoint", endpoint, "status", resp.StatusCode)
		metrics.ProbeFailuresTotal.WithLabelValues("health").Inc()
		return false
	}
	return true
}

func (p *Prober) getJSON(ctx context.Context, url string, timeout time.Duration, kind string, out interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.log.Warn("Invalid probe URL", "url", url, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues(kind).Inc()
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("Probe failed", "url", url, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues(kind).Inc()
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Warn("Probe returned non-2xx", "url", url, "status", resp.StatusCode)
		metrics.ProbeFailuresTotal.WithLabelValues(kind).Inc()
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		p.log.Warn("Probe body read failed", "url", url, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues(kind).Inc()
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		p.log.Warn("Malformed probe response", "url", url, "err", err)
		metrics.ProbeFailuresTotal.WithLabelValues(kind).Inc()
		return false
	}
	return true
}

// Parse decodes the hex fields of the wire form. Unknown provider kind
// codes resolve to Simulated, matching the trust pipeline.
func (r *AttestationReport) Parse() (*interfaces.Attestation, error) {
	quote, err := hex.DecodeString(r.Quote)
	if err != nil {
		return nil, err
	}

	measurementRaw, err := hex.DecodeString(r.Measurement)
	if err != nil {
		return nil, err
	}
	if len(measurementRaw) != 32 {
		return nil, fmt.Errorf("measurement: got %d bytes, want 32", len(measurementRaw))
	}
	var measurement [32]byte
	copy(measurement[:], measurementRaw)

	reportData, err := hex.DecodeString(r.ReportData)
	if err != nil {
		return nil, err
	}

	kind, _ := interfaces.ParseTEEKind(r.ProviderKind)
	return &interfaces.Attestation{
		Quote:        quote,
		Measurement:  measurement,
		ReportData:   reportData,
		TimestampMs:  r.Timestamp,
		ProviderKind: kind,
		Verified:     r.Verified,
	}, nil
}
