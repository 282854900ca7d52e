package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jejunetwork/compute-registry/interfaces"
)

func testID(b byte) interfaces.NodeID {
	var id interfaces.NodeID
	id[0] = b
	return id
}

func TestMockRegistryClient_NodeLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()

	rec := interfaces.NodeRecord{
		Operator:    interfaces.OperatorAddress{0x01},
		Measurement: [32]byte{0xaa},
		TimestampMs: time.Now().UnixMilli(),
		Verified:    true,
		Active:      true,
	}
	m.RegisterNode(testID(1), rec, big.NewInt(500))

	got, err := m.Node(ctx, testID(1))
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	stake, err := m.NodeStake(ctx, testID(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), stake)

	active, err := m.IsNodeActive(ctx, testID(1))
	require.NoError(t, err)
	assert.True(t, active)

	// Unknown ids behave like unregistered contract keys.
	got, err = m.Node(ctx, testID(9))
	require.NoError(t, err)
	assert.False(t, got.Active)

	stake, err = m.NodeStake(ctx, testID(9))
	require.NoError(t, err)
	assert.Zero(t, stake.Sign())
}

func TestMockRegistryClient_ActiveNodesOrderAndFiltering(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()

	m.RegisterNode(testID(3), interfaces.NodeRecord{Active: true}, big.NewInt(1))
	m.RegisterNode(testID(1), interfaces.NodeRecord{Active: false}, big.NewInt(1))
	m.RegisterNode(testID(2), interfaces.NodeRecord{Active: true}, big.NewInt(1))

	ids, err := m.ActiveNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.NodeID{testID(3), testID(2)}, ids)
}

// Every measurement on the allowlist must pass the membership check.
func TestMockRegistryClient_TrustedMeasurements(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()

	m.TrustMeasurement([32]byte{0x01})
	m.TrustMeasurement([32]byte{0x02})

	all, err := m.TrustedMeasurements(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	for _, meas := range all {
		ok, err := m.IsTrustedMeasurement(ctx, meas)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := m.IsTrustedMeasurement(ctx, [32]byte{0xff})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMockRegistryClient_Params(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()

	m.SetMinStake(big.NewInt(42))
	m.SetAttestationValidity(time.Minute)

	minStake, err := m.MinStake(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), minStake)

	validity, err := m.AttestationValidity(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, validity)
}

func TestMockRegistryClient_Signatures(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()

	hash := [32]byte{0x10}
	m.AddValidSignature(testID(1), hash, []byte("sig"))

	ok, err := m.VerifyNodeSignature(ctx, testID(1), hash, []byte("sig"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.VerifyNodeSignature(ctx, testID(1), hash, []byte("other"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.VerifyNodeSignature(ctx, testID(2), hash, []byte("sig"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMockRegistryClient_FailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()
	m.RegisterNode(testID(1), interfaces.NodeRecord{Active: true}, big.NewInt(1))
	m.RegisterNode(testID(2), interfaces.NodeRecord{Active: true}, big.NewInt(1))

	m.FailNode(testID(1), ErrMockUnavailable)

	_, err := m.Node(ctx, testID(1))
	require.Error(t, err)
	var chainErr *interfaces.ChainReadError
	require.True(t, errors.As(err, &chainErr))
	assert.Equal(t, "getNode", chainErr.Op)
	assert.True(t, errors.Is(err, ErrMockUnavailable))

	// The other node still reads fine.
	_, err = m.Node(ctx, testID(2))
	require.NoError(t, err)

	m.FailAll(ErrMockUnavailable)
	_, err = m.ActiveNodes(ctx)
	require.Error(t, err)

	m.FailAll(nil)
	_, err = m.ActiveNodes(ctx)
	require.NoError(t, err)
}

func TestMockRegistryClient_CallCounts(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()

	m.ActiveNodes(ctx)
	m.ActiveNodes(ctx)
	m.MinStake(ctx)

	assert.Equal(t, int64(2), m.Calls.ActiveNodes.Load())
	assert.Equal(t, int64(1), m.Calls.MinStake.Load())
	assert.Equal(t, int64(3), m.Calls.Total())
}
