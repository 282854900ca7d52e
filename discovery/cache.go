package discovery

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/metrics"
	"github.com/jejunetwork/compute-registry/prober"
	"github.com/jejunetwork/compute-registry/trust"
)

// ResourceProber enriches accepted providers with their advertised
// capacity. Satisfied by *prober.Prober.
type ResourceProber interface {
	ProbeResources(ctx context.Context, endpoint string) *prober.ResourceReport
}

// snapshot is the immutable result of one discovery sweep. Providers keep
// their discovery order; byID indexes into the same backing entries. A
// snapshot is swapped in as a single unit so no reader ever observes a
// half-refreshed cache.
type snapshot struct {
	providers []interfaces.ComputeProvider
	byID      map[interfaces.NodeID]int
	takenAt   time.Time
}

// Cache is the time-bounded snapshot store over the registry. It refreshes
// wholesale on expiry and is never patched in place. Concurrent cache-miss
// callers share a single in-flight sweep.
//
// A Cache is owned by one Service instance and injected state only - never
// a package-level singleton - so isolated tests and multi-tenant use stay
// possible.
type Cache struct {
	reg      interfaces.NodeRegistry
	probe    ResourceProber
	resolver interfaces.EndpointResolver
	log      *slog.Logger

	ttl              time.Duration
	concurrency      int
	minStakeOverride *big.Int
	validityOverride time.Duration

	snap   atomic.Pointer[snapshot]
	gen    atomic.Uint64
	sweeps singleflight.Group
}

// NewCache creates a cache over the given registry. probe may be nil to
// disable capacity enrichment.
func NewCache(reg interfaces.NodeRegistry, probe ResourceProber, cfg Config) *Cache {
	cfg = cfg.withDefaults()

	return &Cache{
		reg:              reg,
		probe:            probe,
		resolver:         cfg.Resolver,
		log:              cfg.Log,
		ttl:              cfg.CacheTTL,
		concurrency:      cfg.SweepConcurrency,
		minStakeOverride: cfg.MinStake,
		validityOverride: cfg.AttestationValidity,
	}
}

func (c *Cache) fresh(s *snapshot) bool {
	return s != nil && len(s.providers) > 0 && time.Since(s.takenAt) < c.ttl
}

// Snapshot returns the current provider snapshot, sweeping the chain first
// if the cached one is missing, empty or older than the TTL. A failed sweep
// surfaces its chain error; it never silently yields an empty result.
func (c *Cache) Snapshot(ctx context.Context) (*snapshot, error) {
	if s := c.snap.Load(); c.fresh(s) {
		return s, nil
	}

	v, err, _ := c.sweeps.Do("sweep", func() (interface{}, error) {
		// A caller that queued behind the in-flight sweep finds the
		// snapshot it produced; don't sweep again.
		if s := c.snap.Load(); c.fresh(s) {
			return s, nil
		}
		return c.sweep(ctx)
	})
	if err != nil {
		metrics.SweepFailuresTotal.Inc()
		return nil, err
	}
	return v.(*snapshot), nil
}

// Invalidate clears the snapshot so the next read sweeps the chain. Used
// after external dispute or slashing signals. Bumping the generation first
// ensures a sweep already in flight cannot install its result: that sweep
// read the chain before the invalidation and may not reflect the event
// that triggered it.
func (c *Cache) Invalidate() {
	c.gen.Inc()
	c.snap.Store(nil)
}

// params resolves the network parameters for a sweep, preferring configured
// overrides and falling back to the chain's global values.
func (c *Cache) params(ctx context.Context) (trust.Params, error) {
	p := trust.Params{
		MinStake:            c.minStakeOverride,
		AttestationValidity: c.validityOverride,
	}

	if p.MinStake == nil {
		minStake, err := c.reg.MinStake(ctx)
		if err != nil {
			return trust.Params{}, err
		}
		p.MinStake = minStake
	}

	if p.AttestationValidity == 0 {
		validity, err := c.reg.AttestationValidity(ctx)
		if err != nil {
			return trust.Params{}, err
		}
		p.AttestationValidity = validity
	}

	return p, nil
}

// sweep performs one full discovery pass: list the active set, then fetch
// and evaluate every node with bounded concurrency. A per-node failure
// excludes that node only; the id listing or parameter reads failing aborts
// the sweep with a chain error.
func (c *Cache) sweep(ctx context.Context) (*snapshot, error) {
	startGen := c.gen.Load()

	ids, err := c.reg.ActiveNodes(ctx)
	if err != nil {
		return nil, err
	}

	params, err := c.params(ctx)
	if err != nil {
		return nil, err
	}

	checker := trust.NewMemoChecker(c.reg)
	now := time.Now()

	// results is index-aligned with ids so the snapshot preserves the
	// registry's discovery order regardless of goroutine completion order.
	results := make([]*interfaces.ComputeProvider, len(ids))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			rec, err := c.reg.Node(ctx, id)
			if err != nil {
				c.log.Warn("Skipping node, record fetch failed", "node", id.String(), "err", err)
				return nil
			}

			stake, err := c.reg.NodeStake(ctx, id)
			if err != nil {
				c.log.Warn("Skipping node, stake fetch failed", "node", id.String(), "err", err)
				return nil
			}

			res, err := trust.Evaluate(ctx, checker, params, trust.Input{ID: id, Record: rec, Stake: stake}, now)
			if err != nil {
				c.log.Warn("Skipping node, measurement check failed", "node", id.String(), "err", err)
				return nil
			}
			if !res.Accepted() {
				c.log.Debug("Node rejected", "node", id.String(), "reason", string(res.Reason))
				return nil
			}

			c.enrich(ctx, res.Provider)
			results[i] = res.Provider
			return nil
		})
	}
	g.Wait()

	providers := make([]interfaces.ComputeProvider, 0, len(ids))
	byID := make(map[interfaces.NodeID]int)
	for _, p := range results {
		if p == nil {
			continue
		}
		byID[p.ID] = len(providers)
		providers = append(providers, *p)
	}

	s := &snapshot{
		providers: providers,
		byID:      byID,
		takenAt:   time.Now(),
	}

	// An invalidation that arrived mid-sweep means this snapshot predates
	// it. Return it to the callers already waiting on this sweep, but do
	// not install it; the next read sweeps again.
	if c.gen.Load() == startGen {
		c.snap.Store(s)
	}

	metrics.SweepsTotal.Inc()
	metrics.EligibleNodes.Set(float64(len(providers)))
	c.log.Info("Discovery sweep complete", "active", len(ids), "eligible", len(providers))

	return s, nil
}

// enrich fills the provider's capacity from its resource probe. Probe
// failures leave the profile unknown and never exclude the provider.
func (c *Cache) enrich(ctx context.Context, p *interfaces.ComputeProvider) {
	if c.probe == nil || c.resolver == nil {
		return
	}

	endpoint := c.resolver(p.ID)
	if endpoint == "" {
		return
	}

	report := c.probe.ProbeResources(ctx, endpoint)
	if report == nil {
		return
	}

	p.Resources.CPUCores = report.CPUCores
	p.Resources.MemoryGB = report.MemoryGB
	p.Resources.StorageGB = report.StorageGB
}
