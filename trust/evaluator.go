package trust

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/metrics"
)

// Params are the network parameters the pipeline evaluates against. They
// are fetched once per sweep, not per node.
type Params struct {
	// MinStake is the required minimum stake in wei.
	MinStake *big.Int

	// AttestationValidity is the maximum accepted quote age.
	AttestationValidity time.Duration
}

// Input is the fetched per-node state entering the pipeline.
type Input struct {
	ID     interfaces.NodeID
	Record interfaces.NodeRecord
	Stake  *big.Int
}

// Result is the pipeline outcome. Exactly one of Provider and Reason is
// meaningful: an accepted node carries its normalized provider, a rejected
// node carries the first failing check.
type Result struct {
	Provider *interfaces.ComputeProvider
	Reason   interfaces.RejectReason
}

// Accepted reports whether the node passed every check.
func (r Result) Accepted() bool {
	return r.Provider != nil
}

// MeasurementChecker answers whether a measurement is on the trusted
// allowlist. The on-chain registry client satisfies it directly; sweeps
// wrap it in a MemoChecker.
type MeasurementChecker interface {
	IsTrustedMeasurement(ctx context.Context, measurement [32]byte) (bool, error)
}

// Evaluate runs the trust checks in their fixed, short-circuiting order:
// active flag, attestation age, stake, verifier flag, measurement
// allowlist. The ordering is a deliberate contract - the first failing
// check names the rejection - so it must not be rearranged.
//
// Only the measurement check performs I/O; everything else is a pure
// function of the input and now. A returned error is always a chain read
// failure from the measurement lookup.
func Evaluate(ctx context.Context, checker MeasurementChecker, params Params, in Input, now time.Time) (Result, error) {
	if !in.Record.Active {
		return reject(interfaces.RejectNotActive), nil
	}

	age := now.UnixMilli() - in.Record.TimestampMs
	if age > params.AttestationValidity.Milliseconds() {
		return reject(interfaces.RejectAttestationExpired), nil
	}

	if in.Stake == nil || in.Stake.Cmp(params.MinStake) < 0 {
		return reject(interfaces.RejectInsufficientStake), nil
	}

	if !in.Record.Verified {
		return reject(interfaces.RejectAttestationUnverified), nil
	}

	trusted, err := checker.IsTrustedMeasurement(ctx, in.Record.Measurement)
	if err != nil {
		return Result{}, err
	}
	if !trusted {
		return reject(interfaces.RejectUntrustedMeasurement), nil
	}

	provider := normalize(in, now)
	return Result{Provider: &provider}, nil
}

func reject(reason interfaces.RejectReason) Result {
	metrics.RejectionsTotal.WithLabelValues(string(reason)).Inc()
	return Result{Reason: reason}
}

// normalize builds the ComputeProvider aggregate for an accepted node.
// Unknown provider kind codes resolve to Simulated rather than failing;
// callers who care can compare the raw code themselves.
func normalize(in Input, now time.Time) interfaces.ComputeProvider {
	return interfaces.ComputeProvider{
		ID:          in.ID,
		Operator:    in.Record.Operator,
		Stake:       in.Stake,
		Active:      true,
		Attestation: NormalizeAttestation(in.Record),
		Resources: interfaces.ResourceProfile{
			TEESupported: true,
			TEEKind:      resolveKind(in.Record.KindCode),
		},
		LastVerifiedAt: now,
	}
}

// NormalizeAttestation converts a raw registry record into the normalized
// attestation view, resolving the on-chain provider kind code.
func NormalizeAttestation(rec interfaces.NodeRecord) interfaces.Attestation {
	return interfaces.Attestation{
		Quote:        rec.Quote,
		Measurement:  rec.Measurement,
		ReportData:   rec.ReportData,
		TimestampMs:  rec.TimestampMs,
		ProviderKind: resolveKind(rec.KindCode),
		Verified:     rec.Verified,
	}
}

func resolveKind(code uint8) interfaces.TEEKind {
	kind, _ := interfaces.ParseTEEKind(code)
	return kind
}

// MemoChecker memoizes measurement allowlist lookups for the duration of a
// single sweep. Many nodes share an enclave image, so repeating the chain
// call per node is wasted RPC load. Errors are not memoized; a failed
// lookup is retried on the next node that needs the same measurement.
type MemoChecker struct {
	inner MeasurementChecker

	mu   sync.Mutex
	seen map[[32]byte]bool
}

// NewMemoChecker wraps inner with a per-sweep memo. Create a fresh
// MemoChecker for every sweep; reusing one across sweeps would serve stale
// allowlist answers past the cache TTL.
func NewMemoChecker(inner MeasurementChecker) *MemoChecker {
	return &MemoChecker{
		inner: inner,
		seen:  make(map[[32]byte]bool),
	}
}

// IsTrustedMeasurement implements MeasurementChecker. The lock is held
// across the inner lookup so concurrent callers asking about the same
// measurement produce exactly one chain call.
func (c *MemoChecker) IsTrustedMeasurement(ctx context.Context, measurement [32]byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.seen[measurement]; ok {
		return v, nil
	}

	trusted, err := c.inner.IsTrustedMeasurement(ctx, measurement)
	if err != nil {
		return false, err
	}

	c.seen[measurement] = trusted
	return trusted, nil
}
