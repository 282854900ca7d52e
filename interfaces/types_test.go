package interfaces

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeIDFromHex(t *testing.T) {
	hexID := strings.Repeat("ab", 32)

	id, err := NewNodeIDFromHex("0x" + hexID)
	require.NoError(t, err)
	assert.Equal(t, "0x"+hexID, id.String())

	// Prefix is optional.
	bare, err := NewNodeIDFromHex(hexID)
	require.NoError(t, err)
	assert.Equal(t, id, bare)

	_, err = NewNodeIDFromHex("0x1234")
	require.Error(t, err)

	_, err = NewNodeIDFromHex(strings.Repeat("zz", 32))
	require.Error(t, err)
}

func TestNewOperatorAddressFromHex(t *testing.T) {
	hexAddr := strings.Repeat("cd", 20)

	addr, err := NewOperatorAddressFromHex(hexAddr)
	require.NoError(t, err)
	assert.Equal(t, "0x"+hexAddr, addr.String())

	_, err = NewOperatorAddressFromHex("0xdead")
	require.Error(t, err)
}

func TestParseTEEKind(t *testing.T) {
	kind, ok := ParseTEEKind(0)
	assert.True(t, ok)
	assert.Equal(t, TEEKindDstack, kind)

	kind, ok = ParseTEEKind(1)
	assert.True(t, ok)
	assert.Equal(t, TEEKindPhala, kind)

	// Unknown codes degrade to the simulated kind instead of failing.
	kind, ok = ParseTEEKind(200)
	assert.False(t, ok)
	assert.Equal(t, TEEKindSimulated, kind)
}

func TestParseTEEKindName(t *testing.T) {
	kind, err := ParseTEEKindName("Phala")
	require.NoError(t, err)
	assert.Equal(t, TEEKindPhala, kind)

	_, err = ParseTEEKindName("sgx")
	require.Error(t, err)
}

func TestResourceProfileUnknown(t *testing.T) {
	assert.True(t, ResourceProfile{TEESupported: true}.Unknown())
	assert.False(t, ResourceProfile{CPUCores: 1}.Unknown())
}
