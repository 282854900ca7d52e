package discovery

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/prober"
	"github.com/jejunetwork/compute-registry/registry"
)

var trustedMeasurement = [32]byte{0x11, 0x22}

func nid(b byte) interfaces.NodeID {
	var id interfaces.NodeID
	id[0] = b
	return id
}

func goodRecord() interfaces.NodeRecord {
	return interfaces.NodeRecord{
		Operator:    interfaces.OperatorAddress{0xee},
		Quote:       []byte{0x01},
		Measurement: trustedMeasurement,
		TimestampMs: time.Now().UnixMilli(),
		KindCode:    uint8(interfaces.TEEKindDstack),
		Verified:    true,
		Active:      true,
	}
}

// newTestRegistry builds a mock chain with n eligible nodes staked
// 1000, 1001, ... in registration order.
func newTestRegistry(n int) *registry.MockRegistryClient {
	reg := registry.NewMockRegistryClient()
	reg.TrustMeasurement(trustedMeasurement)
	reg.SetMinStake(big.NewInt(1))

	for i := 0; i < n; i++ {
		reg.RegisterNode(nid(byte(i+1)), goodRecord(), big.NewInt(int64(1000+i)))
	}
	return reg
}

func newTestCache(reg interfaces.NodeRegistry, probe ResourceProber, ttl time.Duration) *Cache {
	return NewCache(reg, probe, Config{CacheTTL: ttl})
}

func TestSnapshot_Sweep(t *testing.T) {
	reg := newTestRegistry(3)
	cache := newTestCache(reg, nil, time.Hour)

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.providers, 3)

	// Discovery order is registration order.
	assert.Equal(t, nid(1), snap.providers[0].ID)
	assert.Equal(t, nid(2), snap.providers[1].ID)
	assert.Equal(t, nid(3), snap.providers[2].ID)
	assert.Equal(t, 1, snap.byID[nid(2)])
}

func TestSnapshot_CachedWithinTTL(t *testing.T) {
	reg := newTestRegistry(3)
	cache := newTestCache(reg, nil, time.Hour)

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	readsAfterFirst := reg.Calls.Total()

	second, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, readsAfterFirst, reg.Calls.Total(), "warm cache must issue zero chain reads")
}

func TestSnapshot_ResweepsAfterTTL(t *testing.T) {
	reg := newTestRegistry(2)
	cache := newTestCache(reg, nil, 10*time.Millisecond)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg.Calls.ActiveNodes.Load())
}

// Concurrent cache-miss callers share one in-flight sweep.
func TestSnapshot_SingleFlight(t *testing.T) {
	reg := newTestRegistry(4)
	cache := newTestCache(reg, nil, time.Hour)

	const callers = 16

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			snap, err := cache.Snapshot(context.Background())
			assert.NoError(t, err)
			assert.Len(t, snap.providers, 4)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), reg.Calls.ActiveNodes.Load(), "concurrent misses must share one sweep")
}

// blockingRegistry stalls the first ActiveNodes call until released, so a
// test can interleave other cache operations with an in-flight sweep.
type blockingRegistry struct {
	*registry.MockRegistryClient

	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
}

func (b *blockingRegistry) ActiveNodes(ctx context.Context) ([]interfaces.NodeID, error) {
	b.enterOnce.Do(func() { close(b.entered) })
	<-b.release
	return b.MockRegistryClient.ActiveNodes(ctx)
}

// An invalidation during an in-flight sweep must not be lost: the sweep
// read the chain before the dispute signal, so its result cannot satisfy
// the next read.
func TestInvalidate_DuringSweep(t *testing.T) {
	reg := newTestRegistry(2)
	blocking := &blockingRegistry{
		MockRegistryClient: reg,
		entered:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	cache := newTestCache(blocking, nil, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)

		snap, err := cache.Snapshot(context.Background())
		assert.NoError(t, err)
		assert.Len(t, snap.providers, 2)
	}()

	<-blocking.entered
	cache.Invalidate()
	close(blocking.release)
	<-done

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg.Calls.ActiveNodes.Load(), "read after a mid-sweep invalidation must sweep again")
}

func TestSnapshot_Invalidate(t *testing.T) {
	reg := newTestRegistry(2)
	cache := newTestCache(reg, nil, time.Hour)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg.Calls.ActiveNodes.Load())
}

// One unreachable node never empties the whole eligible set.
func TestSweep_ExcludesFailingNodeOnly(t *testing.T) {
	reg := newTestRegistry(3)
	reg.FailNode(nid(2), registry.ErrMockUnavailable)
	cache := newTestCache(reg, nil, time.Hour)

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.providers, 2)
	assert.Equal(t, nid(1), snap.providers[0].ID)
	assert.Equal(t, nid(3), snap.providers[1].ID)
}

// Total chain unavailability is an explicit failure, never a silently
// empty snapshot.
func TestSweep_ChainErrorPropagates(t *testing.T) {
	reg := newTestRegistry(2)
	reg.FailAll(registry.ErrMockUnavailable)
	cache := newTestCache(reg, nil, time.Hour)

	_, err := cache.Snapshot(context.Background())
	require.Error(t, err)

	var chainErr *interfaces.ChainReadError
	assert.True(t, errors.As(err, &chainErr))
}

// Nodes sharing an enclave image trigger one allowlist lookup per sweep.
func TestSweep_MeasurementMemoized(t *testing.T) {
	reg := newTestRegistry(5)
	cache := newTestCache(reg, nil, time.Hour)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), reg.Calls.IsTrustedMeasurement.Load())
}

func TestSweep_ExcludesIneligible(t *testing.T) {
	reg := newTestRegistry(1)

	inactive := goodRecord()
	inactive.Active = false
	reg.RegisterNode(nid(10), inactive, big.NewInt(5000))

	unverified := goodRecord()
	unverified.Verified = false
	reg.RegisterNode(nid(11), unverified, big.NewInt(5000))

	cache := newTestCache(reg, nil, time.Hour)

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.providers, 1)
	assert.Equal(t, nid(1), snap.providers[0].ID)
}

// fakeProber lets sweep tests model probe success and failure without HTTP.
type fakeProber struct {
	byURL map[string]*prober.ResourceReport
}

func (f *fakeProber) ProbeResources(ctx context.Context, endpoint string) *prober.ResourceReport {
	return f.byURL[endpoint]
}

// A probe timeout leaves the profile unknown; the provider is still listed.
func TestSweep_ProbeFailureDoesNotExclude(t *testing.T) {
	reg := newTestRegistry(2)

	probe := &fakeProber{byURL: map[string]*prober.ResourceReport{
		"http://node-1": {CPUCores: 16, MemoryGB: 64, StorageGB: 1024},
		// node-2's endpoint is absent: its probe "times out".
	}}

	resolver := func(id interfaces.NodeID) string {
		if id == nid(1) {
			return "http://node-1"
		}
		return "http://node-2"
	}

	cache := NewCache(reg, probe, Config{CacheTTL: time.Hour, Resolver: resolver})

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.providers, 2)

	probed := snap.providers[0]
	assert.Equal(t, uint64(16), probed.Resources.CPUCores)
	assert.Equal(t, uint64(64), probed.Resources.MemoryGB)
	assert.True(t, probed.Resources.TEESupported)

	unprobed := snap.providers[1]
	assert.True(t, unprobed.Resources.Unknown())
	assert.True(t, unprobed.Resources.TEESupported, "probe failure must not touch TEE fields")
}

func TestSweep_NoResolverSkipsProbing(t *testing.T) {
	reg := newTestRegistry(1)
	probe := &fakeProber{}
	cache := NewCache(reg, probe, Config{CacheTTL: time.Hour})

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.providers[0].Resources.Unknown())
}

func TestCache_MinStakeOverrideSkipsChainParam(t *testing.T) {
	reg := newTestRegistry(1)
	cache := NewCache(reg, nil, Config{
		CacheTTL:            time.Hour,
		MinStake:            big.NewInt(5),
		AttestationValidity: time.Hour,
	})

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reg.Calls.MinStake.Load())
	assert.Zero(t, reg.Calls.AttestationValidity.Load())
}
