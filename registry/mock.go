package registry

import (
	"context"
	"math/big"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jejunetwork/compute-registry/interfaces"
)

// MockRegistry mocks the interfaces.NodeRegistry interface.
type MockRegistry struct {
	mock.Mock
}

var _ interfaces.NodeRegistry = (*MockRegistry)(nil)

// ActiveNodes mocks the ActiveNodes method.
func (m *MockRegistry) ActiveNodes(ctx context.Context) ([]interfaces.NodeID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]interfaces.NodeID), args.Error(1)
}

// Node mocks the Node method.
func (m *MockRegistry) Node(ctx context.Context, id interfaces.NodeID) (interfaces.NodeRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.NodeRecord), args.Error(1)
}

// NodeStake mocks the NodeStake method.
func (m *MockRegistry) NodeStake(ctx context.Context, id interfaces.NodeID) (*big.Int, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*big.Int), args.Error(1)
}

// IsNodeActive mocks the IsNodeActive method.
func (m *MockRegistry) IsNodeActive(ctx context.Context, id interfaces.NodeID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// IsTrustedMeasurement mocks the IsTrustedMeasurement method.
func (m *MockRegistry) IsTrustedMeasurement(ctx context.Context, measurement [32]byte) (bool, error) {
	args := m.Called(ctx, measurement)
	return args.Bool(0), args.Error(1)
}

// TrustedMeasurements mocks the TrustedMeasurements method.
func (m *MockRegistry) TrustedMeasurements(ctx context.Context) ([][32]byte, error) {
	args := m.Called(ctx)
	return args.Get(0).([][32]byte), args.Error(1)
}

// MinStake mocks the MinStake method.
func (m *MockRegistry) MinStake(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int), args.Error(1)
}

// AttestationValidity mocks the AttestationValidity method.
func (m *MockRegistry) AttestationValidity(ctx context.Context) (time.Duration, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Duration), args.Error(1)
}

// VerifyNodeSignature mocks the VerifyNodeSignature method.
func (m *MockRegistry) VerifyNodeSignature(ctx context.Context, id interfaces.NodeID, messageHash [32]byte, signature []byte) (bool, error) {
	args := m.Called(ctx, id, messageHash, signature)
	return args.Bool(0), args.Error(1)
}
