package registry

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/metrics"
)

// verifierABI is the read surface of the NodeVerifier contract. Write
// operations (registration, slashing, governance) go through other tooling
// and are intentionally absent here.
const verifierABI = `[
	{"type":"function","stateMutability":"view","name":"getActiveNodes","inputs":[],"outputs":[{"name":"","type":"bytes32[]"}]},
	{"type":"function","stateMutability":"view","name":"getNode","inputs":[{"name":"nodeId","type":"bytes32"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"operator","type":"address"},{"name":"quote","type":"bytes"},{"name":"measurement","type":"bytes32"},{"name":"reportData","type":"bytes"},{"name":"timestamp","type":"uint256"},{"name":"providerKind","type":"uint8"},{"name":"verified","type":"bool"},{"name":"active","type":"bool"}]}]},
	{"type":"function","stateMutability":"view","name":"getNodeStake","inputs":[{"name":"nodeId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"isNodeActive","inputs":[{"name":"nodeId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","stateMutability":"view","name":"isTrustedMeasurement","inputs":[{"name":"measurement","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","stateMutability":"view","name":"getTrustedMeasurements","inputs":[],"outputs":[{"name":"","type":"bytes32[]"}]},
	{"type":"function","stateMutability":"view","name":"getMinStake","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"getAttestationValidity","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"verifyNodeSignature","inputs":[{"name":"nodeId","type":"bytes32"},{"name":"messageHash","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]}
]`

var parsedVerifierABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(verifierABI))
	if err != nil {
		panic("registry: invalid verifier ABI: " + err.Error())
	}
	parsedVerifierABI = parsed
}

// rawNode mirrors the contract's node tuple layout for ABI decoding.
type rawNode struct {
	Operator     common.Address
	Quote        []byte
	Measurement  [32]byte
	ReportData   []byte
	Timestamp    *big.Int
	ProviderKind uint8
	Verified     bool
	Active       bool
}

// DefaultRPCTimeout bounds every contract call issued by the client. An
// unconfigured RPC timeout is a latent hang risk, so the zero value is
// replaced with this default rather than meaning "no timeout".
const DefaultRPCTimeout = 15 * time.Second

// OnchainRegistryClient implements interfaces.NodeRegistry against a
// NodeVerifier contract deployed on an Ethereum-compatible chain.
//
// Node and NodeStake for the same id may be issued concurrently: they are
// independent reads of possibly slightly different chain heights, which is
// accepted for discovery sweeps.
type OnchainRegistryClient struct {
	contract *bind.BoundContract
	address  common.Address
	timeout  time.Duration
}

var _ interfaces.NodeRegistry = (*OnchainRegistryClient)(nil)

// NewOnchainRegistryClient creates a read-only client for the verifier
// contract at the given address. rpcTimeout bounds each individual chain
// call; pass 0 to use DefaultRPCTimeout.
func NewOnchainRegistryClient(backend bind.ContractBackend, address common.Address, rpcTimeout time.Duration) *OnchainRegistryClient {
	if rpcTimeout <= 0 {
		rpcTimeout = DefaultRPCTimeout
	}

	return &OnchainRegistryClient{
		contract: bind.NewBoundContract(address, parsedVerifierABI, backend, nil, nil),
		address:  address,
		timeout:  rpcTimeout,
	}
}

// Address returns the verifier contract address this client reads from.
func (c *OnchainRegistryClient) Address() common.Address {
	return c.address
}

func (c *OnchainRegistryClient) call(ctx context.Context, out *[]interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	metrics.ChainReadsTotal.WithLabelValues(method).Inc()

	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, out, method, args...); err != nil {
		return interfaces.NewChainReadError(method, err)
	}
	return nil
}

// ActiveNodes lists the ids of all currently active nodes.
func (c *OnchainRegistryClient) ActiveNodes(ctx context.Context) ([]interfaces.NodeID, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getActiveNodes"); err != nil {
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([][32]byte)).(*[][32]byte)
	ids := make([]interfaces.NodeID, len(raw))
	for i, r := range raw {
		ids[i] = interfaces.NodeID(r)
	}
	return ids, nil
}

// Node fetches a node's identity, attestation and active flag.
func (c *OnchainRegistryClient) Node(ctx context.Context, id interfaces.NodeID) (interfaces.NodeRecord, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getNode", [32]byte(id)); err != nil {
		return interfaces.NodeRecord{}, err
	}

	raw := *abi.ConvertType(out[0], new(rawNode)).(*rawNode)
	return interfaces.NodeRecord{
		Operator:    interfaces.OperatorAddress(raw.Operator),
		Quote:       raw.Quote,
		Measurement: raw.Measurement,
		ReportData:  raw.ReportData,
		TimestampMs: raw.Timestamp.Int64(),
		KindCode:    raw.ProviderKind,
		Verified:    raw.Verified,
		Active:      raw.Active,
	}, nil
}

// NodeStake fetches the node operator's bonded stake in wei.
func (c *OnchainRegistryClient) NodeStake(ctx context.Context, id interfaces.NodeID) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getNodeStake", [32]byte(id)); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// IsNodeActive reports whether the node is in the active set.
func (c *OnchainRegistryClient) IsNodeActive(ctx context.Context, id interfaces.NodeID) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "isNodeActive", [32]byte(id)); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// IsTrustedMeasurement checks a measurement against the on-chain allowlist.
func (c *OnchainRegistryClient) IsTrustedMeasurement(ctx context.Context, measurement [32]byte) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "isTrustedMeasurement", measurement); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// TrustedMeasurements returns the full on-chain measurement allowlist.
func (c *OnchainRegistryClient) TrustedMeasurements(ctx context.Context) ([][32]byte, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getTrustedMeasurements"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([][32]byte)).(*[][32]byte), nil
}

// MinStake returns the network-wide minimum stake requirement in wei.
func (c *OnchainRegistryClient) MinStake(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getMinStake"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// AttestationValidity returns the network-wide attestation validity window.
// The contract stores the window in milliseconds.
func (c *OnchainRegistryClient) AttestationValidity(ctx context.Context) (time.Duration, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getAttestationValidity"); err != nil {
		return 0, err
	}

	ms := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return time.Duration(ms.Int64()) * time.Millisecond, nil
}

// VerifyNodeSignature checks a signature over messageHash against the node's
// registered key via the contract.
func (c *OnchainRegistryClient) VerifyNodeSignature(ctx context.Context, id interfaces.NodeID, messageHash [32]byte, signature []byte) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "verifyNodeSignature", [32]byte(id), messageHash, signature); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}
