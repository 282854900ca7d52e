package discovery

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/prober"
	"github.com/jejunetwork/compute-registry/registry"
	"github.com/jejunetwork/compute-registry/trust"
)

// ListFilter narrows List results. Nil fields match everything.
type ListFilter struct {
	// MinStake keeps providers with at least this stake. This is a query
	// filter on top of eligibility; the trust pipeline has already
	// enforced the network minimum.
	MinStake *big.Int

	// TEEKind keeps providers backed by this TEE kind.
	TEEKind *interfaces.TEEKind
}

// Constraints narrows Best picks. Zero-valued fields are not applied.
// Resource constraints exclude providers whose capacity is unknown, since
// an all-zero profile means the probe never answered, not zero capacity.
type Constraints struct {
	MinStake     *big.Int
	TEEKind      *interfaces.TEEKind
	MinCPUCores  uint64
	MinMemoryGB  uint64
	MinStorageGB uint64
}

// Service is the selection API over the discovery cache and trust
// evaluator. One Service owns one Cache; construct per registry contract.
type Service struct {
	reg   interfaces.NodeRegistry
	cache *Cache
	log   *slog.Logger
}

// NewService creates a Service over an already-constructed registry reader.
// probe may be nil to disable capacity enrichment.
func NewService(reg interfaces.NodeRegistry, probe ResourceProber, cfg Config) *Service {
	cfg = cfg.withDefaults()

	return &Service{
		reg:   reg,
		cache: NewCache(reg, probe, cfg),
		log:   cfg.Log,
	}
}

// Dial connects to the configured RPC endpoint and wires up a Service with
// the on-chain registry client and a liveness prober.
func Dial(ctx context.Context, cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()

	ethClient, err := ethclient.DialContext(ctx, cfg.RPCAddr)
	if err != nil {
		return nil, err
	}

	reg := registry.NewOnchainRegistryClient(ethClient, ethcommon.Address(cfg.Contract), cfg.RPCTimeout)
	return NewService(reg, prober.New(cfg.Log), cfg), nil
}

// List returns the eligible providers from the cache snapshot, filtered and
// sorted by stake descending. Ties keep the snapshot's discovery order
// (stable sort). Chain unavailability is an explicit error, never a
// silently empty list.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]interfaces.ComputeProvider, error) {
	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]interfaces.ComputeProvider, 0, len(snap.providers))
	for _, p := range snap.providers {
		if filter.MinStake != nil && p.Stake.Cmp(filter.MinStake) < 0 {
			continue
		}
		if filter.TEEKind != nil && p.Resources.TEEKind != *filter.TEEKind {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stake.Cmp(out[j].Stake) > 0
	})

	return out, nil
}

// Best returns the highest-stake provider satisfying the constraints, or
// nil when none qualifies. It is a deterministic greedy pick over the List
// order, not an optimization across criteria.
func (s *Service) Best(ctx context.Context, c Constraints) (*interfaces.ComputeProvider, error) {
	providers, err := s.List(ctx, ListFilter{MinStake: c.MinStake, TEEKind: c.TEEKind})
	if err != nil {
		return nil, err
	}

	for i := range providers {
		p := &providers[i]
		if !p.Active || !p.Attestation.Verified {
			continue
		}
		if c.MinCPUCores > 0 && p.Resources.CPUCores < c.MinCPUCores {
			continue
		}
		if c.MinMemoryGB > 0 && p.Resources.MemoryGB < c.MinMemoryGB {
			continue
		}
		if c.MinStorageGB > 0 && p.Resources.StorageGB < c.MinStorageGB {
			continue
		}
		return p, nil
	}

	return nil, nil
}

// Verify re-runs the trust pipeline against freshly fetched chain state,
// bypassing the cache entirely. Use it wherever a stale read is
// unacceptable, e.g. immediately before routing a payment to the node.
func (s *Service) Verify(ctx context.Context, id interfaces.NodeID) (interfaces.VerificationResult, error) {
	rec, err := s.reg.Node(ctx, id)
	if err != nil {
		return interfaces.VerificationResult{}, err
	}

	stake, err := s.reg.NodeStake(ctx, id)
	if err != nil {
		return interfaces.VerificationResult{}, err
	}

	params, err := s.cache.params(ctx)
	if err != nil {
		return interfaces.VerificationResult{}, err
	}

	res, err := trust.Evaluate(ctx, s.reg, params, trust.Input{ID: id, Record: rec, Stake: stake}, time.Now())
	if err != nil {
		return interfaces.VerificationResult{}, err
	}

	if res.Accepted() {
		return interfaces.VerificationResult{
			Valid:       true,
			Attestation: &res.Provider.Attestation,
			Stake:       stake,
		}, nil
	}

	att := trust.NormalizeAttestation(rec)
	return interfaces.VerificationResult{
		Reason:      res.Reason,
		Attestation: &att,
		Stake:       stake,
	}, nil
}

// VerifySignature checks a node's signature over messageHash through the
// on-chain verifier. It fails closed: an RPC failure yields false along
// with the chain error, so a chain hiccup can never silently pass a
// security check further up the stack.
func (s *Service) VerifySignature(ctx context.Context, id interfaces.NodeID, messageHash [32]byte, signature []byte) (bool, error) {
	ok, err := s.reg.VerifyNodeSignature(ctx, id, messageHash, signature)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ClearCache drops the discovery snapshot, forcing the next query to sweep
// the chain.
func (s *Service) ClearCache() {
	s.cache.Invalidate()
}
