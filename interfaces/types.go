// Package interfaces defines the core types and component contracts for the
// compute node trust registry. It provides the contract between the registry
// reader, trust evaluator, discovery cache and selection API without
// implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// NodeID is the opaque fixed-size handle identifying a compute node in the
// on-chain registry. It is the registry's primary key.
type NodeID [32]byte

// NewNodeIDFromHex parses a node identifier from a hex string, with or
// without 0x prefix.
func NewNodeIDFromHex(s string) (NodeID, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) != 64 {
		return NodeID{}, errors.New("invalid node id length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id NodeID
	copy(id[:], raw)
	return id, nil
}

func (id NodeID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// OperatorAddress is the Ethereum address of a node operator.
type OperatorAddress [20]byte

// NewOperatorAddressFromHex parses an operator address from a 40-character
// hex string, with or without 0x prefix.
func NewOperatorAddressFromHex(addr string) (OperatorAddress, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return OperatorAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return OperatorAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var res OperatorAddress
	copy(res[:], raw)
	return res, nil
}

func (a OperatorAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ContractAddress is the address of the on-chain verifier/registry contract.
type ContractAddress [20]byte

// NewContractAddressFromHex parses a contract address from a 40-character
// hex string, with or without 0x prefix.
func NewContractAddressFromHex(addr string) (ContractAddress, error) {
	parsed, err := NewOperatorAddressFromHex(addr)
	if err != nil {
		return ContractAddress{}, err
	}
	return ContractAddress(parsed), nil
}

func (a ContractAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// TEEKind identifies the TEE provider backing a node's attestation.
type TEEKind uint8

const (
	// TEEKindDstack is a Dstack-based TEE deployment.
	TEEKindDstack TEEKind = iota

	// TEEKindPhala is a Phala-network TEE deployment.
	TEEKindPhala

	// TEEKindSimulated is a simulated enclave without hardware guarantees.
	// Unrecognized chain codes also resolve to this kind.
	TEEKindSimulated
)

// ParseTEEKind resolves the numeric provider code stored on chain. The
// second return value reports whether the code was recognized; callers that
// see an unknown code fall back to TEEKindSimulated.
func ParseTEEKind(code uint8) (TEEKind, bool) {
	switch TEEKind(code) {
	case TEEKindDstack, TEEKindPhala, TEEKindSimulated:
		return TEEKind(code), true
	default:
		return TEEKindSimulated, false
	}
}

// ParseTEEKindName parses a provider kind from its string name.
func ParseTEEKindName(s string) (TEEKind, error) {
	switch strings.ToLower(s) {
	case "dstack":
		return TEEKindDstack, nil
	case "phala":
		return TEEKindPhala, nil
	case "simulated":
		return TEEKindSimulated, nil
	default:
		return 0, fmt.Errorf("unknown tee kind %q", s)
	}
}

func (k TEEKind) String() string {
	switch k {
	case TEEKindDstack:
		return "dstack"
	case TEEKindPhala:
		return "phala"
	case TEEKindSimulated:
		return "simulated"
	default:
		return fmt.Sprintf("tee-kind-%d", uint8(k))
	}
}

// RejectReason is the typed outcome of a failed trust evaluation. It is a
// result value callers branch on, not an error.
type RejectReason string

const (
	RejectNotActive             RejectReason = "NotActive"
	RejectAttestationExpired    RejectReason = "AttestationExpired"
	RejectInsufficientStake     RejectReason = "InsufficientStake"
	RejectAttestationUnverified RejectReason = "AttestationUnverified"
	RejectUntrustedMeasurement  RejectReason = "UntrustedMeasurement"
)

// Attestation is the normalized view of a node's attestation quote as held
// by the registry. Verified is set exclusively by the chain-side verifier;
// this layer never flips it.
type Attestation struct {
	// Quote is the opaque attestation quote bytes.
	Quote []byte

	// Measurement identifies the enclave image, checked against the
	// on-chain trusted allowlist.
	Measurement [32]byte

	// ReportData is the user data bound into the quote.
	ReportData []byte

	// TimestampMs is milliseconds since epoch, set by the TEE at quote time.
	TimestampMs int64

	// ProviderKind is the resolved TEE provider backing the quote.
	ProviderKind TEEKind

	// Verified reports whether the chain-side verifier accepted the quote.
	Verified bool
}

// NodeRecord is the raw per-node registry state as read from chain. The
// provider kind is kept as the raw on-chain code here; resolution to a
// TEEKind happens during trust evaluation.
type NodeRecord struct {
	Operator    OperatorAddress
	Quote       []byte
	Measurement [32]byte
	ReportData  []byte
	TimestampMs int64
	KindCode    uint8
	Verified    bool
	Active      bool
}

// ResourceProfile describes a node's advertised capacity. An all-zero
// capacity means "unknown" (e.g. the resource probe failed), not a node
// with zero capacity.
type ResourceProfile struct {
	CPUCores  uint64
	MemoryGB  uint64
	StorageGB uint64

	// TEESupported and TEEKind are derived from the attestation, never
	// from probe responses.
	TEESupported bool
	TEEKind      TEEKind
}

// Unknown reports whether the capacity portion of the profile was never
// filled in.
func (p ResourceProfile) Unknown() bool {
	return p.CPUCores == 0 && p.MemoryGB == 0 && p.StorageGB == 0
}

// ComputeProvider is the aggregate produced by a discovery sweep for an
// eligible node. Providers are replaced wholesale by the next successful
// sweep and are never partially mutated.
type ComputeProvider struct {
	ID             NodeID
	Operator       OperatorAddress
	Stake          *big.Int
	Active         bool
	Attestation    Attestation
	Resources      ResourceProfile
	LastVerifiedAt time.Time
}

// VerificationResult is the outcome of an authoritative, cache-bypassing
// node verification.
type VerificationResult struct {
	Valid       bool
	Reason      RejectReason
	Attestation *Attestation
	Stake       *big.Int
}
