package interfaces

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// NodeRegistry is the read-only view of the on-chain verifier/registry
// contract. All methods are point-in-time chain reads; any RPC failure is
// surfaced as a *ChainReadError and never retried here - retry policy
// belongs to the caller.
type NodeRegistry interface {
	// ActiveNodes lists the ids of all currently active nodes.
	ActiveNodes(ctx context.Context) ([]NodeID, error)

	// Node fetches a node's identity, attestation and active flag.
	Node(ctx context.Context, id NodeID) (NodeRecord, error)

	// NodeStake fetches the node operator's bonded stake in wei.
	NodeStake(ctx context.Context, id NodeID) (*big.Int, error)

	// IsNodeActive reports whether the node is in the active set.
	IsNodeActive(ctx context.Context, id NodeID) (bool, error)

	// IsTrustedMeasurement checks a measurement against the on-chain
	// allowlist.
	IsTrustedMeasurement(ctx context.Context, measurement [32]byte) (bool, error)

	// TrustedMeasurements returns the full on-chain measurement allowlist.
	TrustedMeasurements(ctx context.Context) ([][32]byte, error)

	// MinStake returns the network-wide minimum stake requirement.
	MinStake(ctx context.Context) (*big.Int, error)

	// AttestationValidity returns the network-wide attestation validity
	// window.
	AttestationValidity(ctx context.Context) (time.Duration, error)

	// VerifyNodeSignature checks a signature over messageHash against the
	// node's registered key via the contract.
	VerifyNodeSignature(ctx context.Context, id NodeID, messageHash [32]byte, signature []byte) (bool, error)
}

// EndpointResolver maps a node id to the base URL of its advertised HTTP
// endpoint. Resolution (DNS, on-chain domain records, static config) happens
// outside this layer; an empty string means the node has no known endpoint
// and will not be probed.
type EndpointResolver func(id NodeID) string

// ChainReadError wraps an RPC failure or malformed response from the chain.
// It is fatal for the operation that triggered it and is propagated to the
// caller without internal retries.
type ChainReadError struct {
	// Op is the contract method that failed, e.g. "getActiveNodes".
	Op string

	// Err is the underlying RPC or decoding error.
	Err error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("chain read %s: %v", e.Op, e.Err)
}

func (e *ChainReadError) Unwrap() error {
	return e.Err
}

// NewChainReadError wraps err as a chain read failure for the given
// contract method.
func NewChainReadError(op string, err error) *ChainReadError {
	return &ChainReadError{Op: op, Err: err}
}
