package registry

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/jejunetwork/compute-registry/interfaces"
)

// CallCounts tracks per-method invocation counts on the mock client. Tests
// use it to assert caching behavior, e.g. that a warm cache issues zero
// additional chain reads.
type CallCounts struct {
	ActiveNodes          atomic.Int64
	Node                 atomic.Int64
	NodeStake            atomic.Int64
	IsNodeActive         atomic.Int64
	IsTrustedMeasurement atomic.Int64
	TrustedMeasurements  atomic.Int64
	MinStake             atomic.Int64
	AttestationValidity  atomic.Int64
	VerifyNodeSignature  atomic.Int64
}

// Total returns the sum of all method counters.
func (c *CallCounts) Total() int64 {
	return c.ActiveNodes.Load() + c.Node.Load() + c.NodeStake.Load() +
		c.IsNodeActive.Load() + c.IsTrustedMeasurement.Load() +
		c.TrustedMeasurements.Load() + c.MinStake.Load() +
		c.AttestationValidity.Load() + c.VerifyNodeSignature.Load()
}

// MockRegistryClient is an in-memory implementation of the NodeRegistry
// interface for testing without a blockchain connection. It keeps per-method
// call counters and supports per-node and global failure injection.
type MockRegistryClient struct {
	mu sync.RWMutex

	records   map[interfaces.NodeID]interfaces.NodeRecord
	stakes    map[interfaces.NodeID]*big.Int
	trusted   map[[32]byte]bool
	order     []interfaces.NodeID
	minStake  *big.Int
	validity  time.Duration
	validSigs map[interfaces.NodeID]map[[32]byte]string
	failNode  map[interfaces.NodeID]error
	failAll   error

	// Calls tracks per-method invocation counts.
	Calls CallCounts
}

var _ interfaces.NodeRegistry = (*MockRegistryClient)(nil)

// NewMockRegistryClient creates a mock registry with no nodes, a minimum
// stake of zero and a 24h attestation validity window.
func NewMockRegistryClient() *MockRegistryClient {
	return &MockRegistryClient{
		records:   make(map[interfaces.NodeID]interfaces.NodeRecord),
		stakes:    make(map[interfaces.NodeID]*big.Int),
		trusted:   make(map[[32]byte]bool),
		minStake:  big.NewInt(0),
		validity:  24 * time.Hour,
		validSigs: make(map[interfaces.NodeID]map[[32]byte]string),
		failNode:  make(map[interfaces.NodeID]error),
	}
}

// RegisterNode adds or replaces a node record and its stake. Nodes are
// listed by ActiveNodes in registration order.
func (m *MockRegistryClient) RegisterNode(id interfaces.NodeID, rec interfaces.NodeRecord, stake *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		m.order = append(m.order, id)
	}
	m.records[id] = rec
	m.stakes[id] = stake
}

// TrustMeasurement adds a measurement to the allowlist.
func (m *MockRegistryClient) TrustMeasurement(measurement [32]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[measurement] = true
}

// SetMinStake sets the network minimum stake.
func (m *MockRegistryClient) SetMinStake(v *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minStake = v
}

// SetAttestationValidity sets the attestation validity window.
func (m *MockRegistryClient) SetAttestationValidity(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validity = d
}

// AddValidSignature marks a (node, messageHash, signature) triple as valid.
func (m *MockRegistryClient) AddValidSignature(id interfaces.NodeID, messageHash [32]byte, signature []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.validSigs[id] == nil {
		m.validSigs[id] = make(map[[32]byte]string)
	}
	m.validSigs[id][messageHash] = string(signature)
}

// FailNode makes all reads for the given node fail with err.
func (m *MockRegistryClient) FailNode(id interfaces.NodeID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNode[id] = err
}

// FailAll makes every method fail with err until called again with nil.
func (m *MockRegistryClient) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

func (m *MockRegistryClient) globalErr(op string) error {
	if m.failAll == nil {
		return nil
	}
	return interfaces.NewChainReadError(op, m.failAll)
}

func (m *MockRegistryClient) nodeErr(op string, id interfaces.NodeID) error {
	if err := m.globalErr(op); err != nil {
		return err
	}
	if err := m.failNode[id]; err != nil {
		return interfaces.NewChainReadError(op, err)
	}
	return nil
}

// ActiveNodes lists registered nodes whose active flag is set, in
// registration order.
func (m *MockRegistryClient) ActiveNodes(ctx context.Context) ([]interfaces.NodeID, error) {
	m.Calls.ActiveNodes.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.globalErr("getActiveNodes"); err != nil {
		return nil, err
	}

	ids := make([]interfaces.NodeID, 0, len(m.order))
	for _, id := range m.order {
		if m.records[id].Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Node returns the stored record. Unknown ids return a zero record with
// Active=false, matching contract behavior for unregistered keys.
func (m *MockRegistryClient) Node(ctx context.Context, id interfaces.NodeID) (interfaces.NodeRecord, error) {
	m.Calls.Node.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.nodeErr("getNode", id); err != nil {
		return interfaces.NodeRecord{}, err
	}
	return m.records[id], nil
}

// NodeStake returns the stored stake, zero for unknown ids.
func (m *MockRegistryClient) NodeStake(ctx context.Context, id interfaces.NodeID) (*big.Int, error) {
	m.Calls.NodeStake.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.nodeErr("getNodeStake", id); err != nil {
		return nil, err
	}
	if s, ok := m.stakes[id]; ok {
		return new(big.Int).Set(s), nil
	}
	return big.NewInt(0), nil
}

// IsNodeActive reports the stored active flag.
func (m *MockRegistryClient) IsNodeActive(ctx context.Context, id interfaces.NodeID) (bool, error) {
	m.Calls.IsNodeActive.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.nodeErr("isNodeActive", id); err != nil {
		return false, err
	}
	return m.records[id].Active, nil
}

// IsTrustedMeasurement checks the in-memory allowlist.
func (m *MockRegistryClient) IsTrustedMeasurement(ctx context.Context, measurement [32]byte) (bool, error) {
	m.Calls.IsTrustedMeasurement.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.globalErr("isTrustedMeasurement"); err != nil {
		return false, err
	}
	return m.trusted[measurement], nil
}

// TrustedMeasurements returns the in-memory allowlist.
func (m *MockRegistryClient) TrustedMeasurements(ctx context.Context) ([][32]byte, error) {
	m.Calls.TrustedMeasurements.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.globalErr("getTrustedMeasurements"); err != nil {
		return nil, err
	}

	out := make([][32]byte, 0, len(m.trusted))
	for h := range m.trusted {
		out = append(out, h)
	}
	return out, nil
}

// MinStake returns the configured minimum stake.
func (m *MockRegistryClient) MinStake(ctx context.Context) (*big.Int, error) {
	m.Calls.MinStake.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.globalErr("getMinStake"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.minStake), nil
}

// AttestationValidity returns the configured validity window.
func (m *MockRegistryClient) AttestationValidity(ctx context.Context) (time.Duration, error) {
	m.Calls.AttestationValidity.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.globalErr("getAttestationValidity"); err != nil {
		return 0, err
	}
	return m.validity, nil
}

// VerifyNodeSignature checks the triple against signatures registered via
// AddValidSignature.
func (m *MockRegistryClient) VerifyNodeSignature(ctx context.Context, id interfaces.NodeID, messageHash [32]byte, signature []byte) (bool, error) {
	m.Calls.VerifyNodeSignature.Inc()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.nodeErr("verifyNodeSignature", id); err != nil {
		return false, err
	}

	sigs, ok := m.validSigs[id]
	if !ok {
		return false, nil
	}
	return sigs[messageHash] == string(signature), nil
}

// ErrMockUnavailable is a convenience error for failure injection in tests.
var ErrMockUnavailable = errors.New("mock registry unavailable")
