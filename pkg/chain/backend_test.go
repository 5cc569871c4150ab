package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/catena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct{ info BackendInfo }

func (s stubBackend) InitializeChain(*types.Chain) error { return nil }
func (s stubBackend) ProvisionController(context.Context, ProvisionRequest) (string, error) {
	return "", nil
}
func (s stubBackend) ProvisionNode(context.Context, ProvisionRequest) (string, error) {
	return "", nil
}
func (s stubBackend) NodeConfig(string) map[string]any { return nil }
func (s stubBackend) Info() BackendInfo                 { return s.info }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("ethereum", stubBackend{info: BackendInfo{ChainTypes: []string{"proof-of-work"}, NodeTypes: []string{"miner"}}})

	b, err := r.Backend("ethereum")
	require.NoError(t, err)
	assert.True(t, b.Info().SupportsNodeType("miner"))
	assert.False(t, b.Info().SupportsNodeType("controller"))

	_, err = r.Backend("ripple")
	assert.True(t, errors.Is(err, types.ErrConfig))

	assert.Equal(t, []string{"ethereum"}, r.Names())
	assert.Equal(t, []string{"proof-of-work"}, r.Info()["ethereum"].ChainTypes)
}
