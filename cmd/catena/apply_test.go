package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cuemby/catena/pkg/api"
	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	clouds []*types.CloudView
	chains []*types.ChainView
	nodes  map[string][]*types.NodeView

	chainReqs []api.ChainRequest
	nodeReqs  []manager.NodeRequest
}

func (f *fakeAPI) CreateCloud(_ context.Context, req api.CloudRequest) (*types.CloudView, error) {
	v := &types.CloudView{ID: fmt.Sprintf("cloud-%d", len(f.clouds)+1), Name: req.Name, CloudConfig: req.Config}
	f.clouds = append(f.clouds, v)
	return v, nil
}

func (f *fakeAPI) ListClouds(_ context.Context, opts storage.ListOptions) ([]*types.CloudView, error) {
	var out []*types.CloudView
	for _, c := range f.clouds {
		if c.Name == opts.Filters["name"] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateChain(_ context.Context, req api.ChainRequest) (*types.ChainView, error) {
	f.chainReqs = append(f.chainReqs, req)
	v := &types.ChainView{ID: fmt.Sprintf("chain-%d", len(f.chains)+1), Name: req.Name, CloudID: req.CloudID}
	f.chains = append(f.chains, v)
	return v, nil
}

func (f *fakeAPI) ListChains(_ context.Context, opts storage.ListOptions) ([]*types.ChainView, error) {
	var out []*types.ChainView
	for _, c := range f.chains {
		if c.Name == opts.Filters["name"] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateNode(_ context.Context, chainID string, req manager.NodeRequest) (*types.NodeView, error) {
	f.nodeReqs = append(f.nodeReqs, req)
	if f.nodes == nil {
		f.nodes = map[string][]*types.NodeView{}
	}
	v := &types.NodeView{ID: fmt.Sprintf("vm-%d", len(f.nodeReqs)), Name: req.Name, Type: req.Type, ChainID: chainID}
	f.nodes[chainID] = append(f.nodes[chainID], v)
	return v, nil
}

func (f *fakeAPI) ListNodes(_ context.Context, chainID string, opts storage.ListOptions) ([]*types.NodeView, error) {
	var out []*types.NodeView
	for _, n := range f.nodes[chainID] {
		if n.Name == opts.Filters["name"] {
			out = append(out, n)
		}
	}
	return out, nil
}

const networkYAML = `apiVersion: v1
kind: Cloud
metadata:
  name: lab
spec:
  type: openstack
  authentication:
    username: admin
  config:
    auth_url: https://keystone.example:5000/v3
---
apiVersion: v1
kind: Chain
metadata:
  name: net1
spec:
  cloud: lab
  chain_config:
    mining_account: "0xabc"
  cloud_config:
    jumpbox: vm1
    controller_flavour: m1.small
---
apiVersion: v1
kind: Node
metadata:
  name: miner1
spec:
  chain: net1
  flavour: m1.small
`

func TestDecodeResources(t *testing.T) {
	resources, err := decodeResources(strings.NewReader(networkYAML))
	require.NoError(t, err)
	require.Len(t, resources, 3)

	assert.Equal(t, "Cloud", resources[0].Kind)
	assert.Equal(t, "lab", resources[0].Metadata.Name)
	assert.Equal(t, "admin", getMap(resources[0].Spec, "authentication")["username"])
	assert.Equal(t, "0xabc", getMap(resources[1].Spec, "chain_config")["mining_account"])
}

func TestDecodeResourcesMissingName(t *testing.T) {
	_, err := decodeResources(strings.NewReader("kind: Chain\nspec: {}\n"))
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestApplyNetwork(t *testing.T) {
	resources, err := decodeResources(strings.NewReader(networkYAML))
	require.NoError(t, err)

	fake := &fakeAPI{}
	var out bytes.Buffer
	for _, r := range resources {
		require.NoError(t, applyResource(context.Background(), fake, r, &out))
	}

	require.Len(t, fake.chainReqs, 1)
	assert.Equal(t, "cloud-1", fake.chainReqs[0].CloudID)
	require.Len(t, fake.nodeReqs, 1)
	assert.Equal(t, "miner", fake.nodeReqs[0].Type)
	assert.Len(t, fake.nodes["chain-1"], 1)

	// a second apply creates nothing
	out.Reset()
	for _, r := range resources {
		require.NoError(t, applyResource(context.Background(), fake, r, &out))
	}
	assert.Len(t, fake.clouds, 1)
	assert.Len(t, fake.chains, 1)
	assert.Len(t, fake.nodeReqs, 1)
	assert.Contains(t, out.String(), "Node already exists: miner1")
}

func TestApplyUnknownReferences(t *testing.T) {
	fake := &fakeAPI{}
	chain := &Resource{Kind: "Chain", Metadata: ResourceMetadata{Name: "net1"}, Spec: map[string]any{"cloud": "missing"}}
	err := applyResource(context.Background(), fake, chain, &bytes.Buffer{})
	assert.True(t, errors.Is(err, types.ErrNotFound))

	node := &Resource{Kind: "Node", Metadata: ResourceMetadata{Name: "m1"}, Spec: map[string]any{"flavour": "small"}}
	err = applyResource(context.Background(), fake, node, &bytes.Buffer{})
	assert.True(t, errors.Is(err, types.ErrValidation))

	other := &Resource{Kind: "Service", Metadata: ResourceMetadata{Name: "web"}}
	err = applyResource(context.Background(), fake, other, &bytes.Buffer{})
	assert.True(t, errors.Is(err, types.ErrValidation))
}
