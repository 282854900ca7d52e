package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jejunetwork/compute-registry/prober"
)

func testHandler() *Handler {
	return NewHandler(
		NodeProfile{CPUCores: 8, MemoryGB: 32, StorageGB: 512},
		prober.AttestationReport{
			Quote:        "deadbeef",
			Measurement:  strings.Repeat("42", 32),
			Timestamp:    1700000000000,
			ProviderKind: 2,
			Verified:     true,
		},
		slog.New(slog.DiscardHandler),
	)
}

func TestHandleResources(t *testing.T) {
	rr := httptest.NewRecorder()
	testHandler().HandleResources(rr, httptest.NewRequest(http.MethodGet, "/resources", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var report prober.ResourceReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, uint64(8), report.CPUCores)
	assert.Equal(t, uint64(32), report.MemoryGB)
	assert.Equal(t, uint64(512), report.StorageGB)
}

// The served attestation must round-trip through the prober's decoder.
func TestHandleAttestation(t *testing.T) {
	rr := httptest.NewRecorder()
	testHandler().HandleAttestation(rr, httptest.NewRequest(http.MethodGet, "/attestation", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var report prober.AttestationReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))

	att, err := report.Parse()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, att.Quote)
	assert.Equal(t, byte(0x42), att.Measurement[0])
	assert.True(t, att.Verified)
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	testHandler().HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestLoadNodeProfile(t *testing.T) {
	in := strings.NewReader("cpu_cores: 4\nmemory_gb: 16\nstorage_gb: 256\n")

	p, err := LoadNodeProfile(in)
	require.NoError(t, err)
	assert.Equal(t, NodeProfile{CPUCores: 4, MemoryGB: 16, StorageGB: 256}, p)
}

func TestLoadNodeProfile_Invalid(t *testing.T) {
	_, err := LoadNodeProfile(strings.NewReader("{not yaml"))
	require.Error(t, err)
}
