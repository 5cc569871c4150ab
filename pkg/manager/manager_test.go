package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/chain/ethereum"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/events"
	"github.com/cuemby/catena/pkg/provisioner"
	"github.com/cuemby/catena/pkg/security"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloud struct {
	mu         sync.Mutex
	env        cloud.Environment
	initCalls  int
	next       int
	added      []string
	deleted    []string
	failAdd    error
	stuckID    string
	failDelete map[string]error
}

func (f *fakeCloud) factory(_ *types.Cloud, env cloud.Environment) (cloud.Backend, error) {
	f.env = env
	return f, nil
}

func (f *fakeCloud) NodeFlavours(context.Context) ([]string, error) {
	return []string{"m1.small", "m1.large"}, nil
}

func (f *fakeCloud) Networks(context.Context) ([]string, error) { return []string{"private"}, nil }

func (f *fakeCloud) Instances(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...), nil
}

func (f *fakeCloud) InitializeCloud(_ context.Context, ch *types.Chain) error {
	f.mu.Lock()
	f.initCalls++
	f.mu.Unlock()

	cfg, err := cloud.PrepareChainCloudConfig(ch, f.env.Secrets)
	if err != nil {
		return err
	}
	cfg.JumpboxIP = "203.0.113.10"
	cfg.NetworkID = "net-1"
	cfg.Record(ch)
	return nil
}

func (f *fakeCloud) AddNode(_ context.Context, _, _, _ string, _ *types.Chain) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		return f.stuckID, "", f.failAdd
	}
	f.next++
	id := fmt.Sprintf("vm-%d", f.next)
	f.added = append(f.added, id)
	return id, fmt.Sprintf("10.0.0.%d", f.next), nil
}

func (f *fakeCloud) DeleteNode(_ context.Context, _ *types.Chain, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if err := f.failDelete[id]; err != nil {
		return err
	}
	return nil
}

type fakeProvisioner struct {
	mu       sync.Mutex
	requests []provisioner.Request
	err      error
}

func (p *fakeProvisioner) Run(_ context.Context, req provisioner.Request) (*provisioner.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	// sequential hex enode ids, printed quoted like the playbooks do
	return &provisioner.Result{NodeID: fmt.Sprintf("%q", fmt.Sprintf("abc%02x", len(p.requests)))}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingPublisher) Publish(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	manager     *Manager
	store       storage.Store
	secrets     *security.SecretsManager
	cloud       *fakeCloud
	provisioner *fakeProvisioner
	events      *recordingPublisher
	jumpboxKey  string
}

func newFixture(t *testing.T, compensate bool) *fixture {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sm, err := security.NewSecretsManager("test-passphrase",
		security.WithKDFParams(security.KDFParams{N: 1024, R: 8, P: 1}),
		security.WithTempDir(t.TempDir()))
	require.NoError(t, err)

	fc := &fakeCloud{failDelete: map[string]error{}}
	clouds := cloud.NewRegistry(cloud.Environment{Secrets: sm, BaseImage: "Catena"})
	clouds.Register("openstack", fc.factory)

	prov := &fakeProvisioner{}
	chains := chain.NewRegistry()
	chains.Register(ethereum.BackendName, ethereum.New(ethereum.Config{
		Secrets:     sm,
		Provisioner: prov,
		TempDir:     t.TempDir(),
	}))

	pub := &recordingPublisher{}
	m, err := NewManager(Config{
		Store:               store,
		Secrets:             sm,
		Clouds:              clouds,
		Chains:              chains,
		Events:              pub,
		Owner:               "admin",
		CompensateOnFailure: compensate,
	})
	require.NoError(t, err)

	_, blob, err := sm.GenerateKeyPair()
	require.NoError(t, err)
	plaintext, err := sm.Decrypt(blob)
	require.NoError(t, err)

	return &fixture{
		manager:     m,
		store:       store,
		secrets:     sm,
		cloud:       fc,
		provisioner: prov,
		events:      pub,
		jumpboxKey:  string(plaintext),
	}
}

func (f *fixture) createCloud(t *testing.T) string {
	t.Helper()
	view, err := f.manager.CreateCloud(context.Background(), "openstack", "os1",
		map[string]any{"username": "admin", "password": "hunter2"},
		map[string]any{"proxy": "http://proxy:3128"})
	require.NoError(t, err)
	return view.ID
}

func (f *fixture) cloudConfig() map[string]any {
	return map[string]any{
		"jumpbox":            "vm1",
		"jumpbox_key":        f.jumpboxKey,
		"controller_flavour": "m1.small",
		"network":            "private",
	}
}

func (f *fixture) createChain(t *testing.T, cloudID string) *types.ChainView {
	t.Helper()
	view, err := f.manager.CreateChain(context.Background(), cloudID, "net1",
		map[string]any{"mining_account": "0xabc"}, f.cloudConfig())
	require.NoError(t, err)
	return view
}

func (f *fixture) chainCount(t *testing.T) int {
	t.Helper()
	chains, err := f.manager.GetChains(context.Background(), storage.ListOptions{})
	require.NoError(t, err)
	return len(chains)
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	_, err := NewManager(Config{})
	assert.True(t, errors.Is(err, types.ErrConfig))
}

func TestCreateChainEndToEnd(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	cloudID := f.createCloud(t)

	view := f.createChain(t, cloudID)
	assert.Equal(t, "ethereum", view.ChainBackend)
	assert.Equal(t, "net1", view.Name)
	assert.Equal(t, cloudID, view.CloudID)
	assert.NotNil(t, view.ChainConfig["genesis"])
	assert.NotNil(t, view.ChainConfig["network_id"])

	chains, err := f.manager.GetChains(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, "ethereum", chains[0].ChainBackend)
	assert.NotNil(t, chains[0].ChainConfig["genesis"])

	nodes, err := f.manager.GetNodes(ctx, view.ID, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, types.NodeTypeController, nodes[0].Type)
	assert.Equal(t, "net1_controller", nodes[0].Name)
	assert.Equal(t, "abc01", nodes[0].ChainConfig["eth_node_id"])

	require.NoError(t, f.store.View(ctx, func(tx storage.Tx) error {
		stored, err := tx.GetChain(view.ID)
		require.NoError(t, err)
		assert.Equal(t, types.ChainStatusActive, stored.Status)
		assert.Equal(t, "admin", stored.Owner)
		assert.True(t, security.IsEncrypted(types.ConfigString(stored.CloudConfig, "jumpbox_key")))
		assert.Equal(t, "203.0.113.10", stored.CloudConfig["jumpbox_ip"])
		return nil
	}))

	require.Len(t, f.provisioner.requests, 1)
	req := f.provisioner.requests[0]
	assert.Equal(t, ethereum.ControllerPlaybook, req.Playbook)
	assert.Equal(t, []string{"10.0.0.1"}, req.Hosts)
	assert.Equal(t, "203.0.113.10", req.JumpboxIP)

	assert.Contains(t, f.events.types(), events.EventCloudCreated)
	assert.Contains(t, f.events.types(), events.EventChainCreated)
}

func TestViewsAreRedacted(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	cloudID := f.createCloud(t)
	ch := f.createChain(t, cloudID)
	_, err := f.manager.CreateNode(ctx, ch.ID, NodeRequest{Flavour: "m1.small", Name: "miner1", Type: "miner"})
	require.NoError(t, err)

	clouds, err := f.manager.GetClouds(ctx, storage.ListOptions{})
	require.NoError(t, err)
	chains, err := f.manager.GetChains(ctx, storage.ListOptions{})
	require.NoError(t, err)
	nodes, err := f.manager.GetNodes(ctx, ch.ID, storage.ListOptions{})
	require.NoError(t, err)

	data, err := json.Marshal(map[string]any{"clouds": clouds, "chains": chains, "nodes": nodes})
	require.NoError(t, err)
	body := string(data)
	for _, secret := range []string{"ssh_key", "authentication", "hunter2", "PRIVATE KEY", "jumpbox_key"} {
		assert.NotContains(t, body, secret)
	}
}

func TestCreateChainEmptyName(t *testing.T) {
	f := newFixture(t, false)
	cloudID := f.createCloud(t)

	_, err := f.manager.CreateChain(context.Background(), cloudID, "",
		map[string]any{"mining_account": "0xabc"}, f.cloudConfig())
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Equal(t, 0, f.chainCount(t))
	assert.Zero(t, f.cloud.initCalls)
}

func TestCreateChainMissingMiningAccount(t *testing.T) {
	f := newFixture(t, false)
	cloudID := f.createCloud(t)

	_, err := f.manager.CreateChain(context.Background(), cloudID, "net1",
		map[string]any{"type": "proof-of-work"}, f.cloudConfig())
	assert.True(t, errors.Is(err, types.ErrConfig))
	assert.Zero(t, f.cloud.initCalls)
	assert.Empty(t, f.cloud.added)
	assert.Equal(t, 0, f.chainCount(t))
	assert.Contains(t, f.events.types(), events.EventOperationFailed)
}

func TestCreateChainMissingCloudConfig(t *testing.T) {
	f := newFixture(t, false)
	cloudID := f.createCloud(t)
	cfg := f.cloudConfig()
	delete(cfg, "controller_flavour")

	_, err := f.manager.CreateChain(context.Background(), cloudID, "net1",
		map[string]any{"mining_account": "0xabc"}, cfg)
	assert.True(t, errors.Is(err, types.ErrConfig))
	assert.Empty(t, f.cloud.added)
	assert.Equal(t, 0, f.chainCount(t))
}

func TestCreateChainUnknownCloud(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.manager.CreateChain(context.Background(), "missing", "net1",
		map[string]any{"mining_account": "0xabc"}, f.cloudConfig())
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestCreateChainProvisionFailureOrphans(t *testing.T) {
	tests := []struct {
		name       string
		compensate bool
		released   []string
	}{
		{name: "without compensation"},
		{name: "with compensation", compensate: true, released: []string{"vm-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.compensate)
			cloudID := f.createCloud(t)
			f.provisioner.err = fmt.Errorf("%w: playbook failed", types.ErrProvisioning)

			_, err := f.manager.CreateChain(context.Background(), cloudID, "net1",
				map[string]any{"mining_account": "0xabc"}, f.cloudConfig())

			var orphaned *types.OrphanedResourcesError
			require.True(t, errors.As(err, &orphaned))
			assert.True(t, errors.Is(err, types.ErrProvisioning))
			assert.Equal(t, cloudID, orphaned.CloudID)
			assert.Equal(t, []string{"vm-1"}, orphaned.Instances)
			assert.Equal(t, tt.released, orphaned.Released)
			assert.Equal(t, tt.released, f.cloud.deleted)
			assert.Equal(t, 0, f.chainCount(t))

			if !tt.compensate {
				assert.Contains(t, f.events.types(), events.EventInstancesOrphaned)
			}
		})
	}
}

func TestCreateNodeBootnodes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))

	first, err := f.manager.CreateNode(ctx, ch.ID, NodeRequest{Flavour: "m1.small", Name: "miner1", Type: "miner"})
	require.NoError(t, err)
	assert.Equal(t, "vm-2", first.ID)
	assert.Equal(t, "abc02", first.ChainConfig["eth_node_id"])

	second, err := f.manager.CreateNode(ctx, ch.ID, NodeRequest{Flavour: "m1.small", Name: "miner2", Type: "miner"})
	require.NoError(t, err)

	require.Len(t, f.provisioner.requests, 3)
	assert.Equal(t, "enode://abc01@10.0.0.1:30303",
		f.provisioner.requests[1].Vars["bootnodes"])

	req := f.provisioner.requests[2]
	assert.Equal(t, ethereum.NodePlaybook, req.Playbook)
	assert.Equal(t, []string{"10.0.0.3"}, req.Hosts)
	assert.Equal(t, "10.0.0.1", req.Vars["stats_ip"])
	assert.Equal(t, "0xabc", req.Vars["etherbase"])
	assert.ElementsMatch(t,
		[]string{"enode://abc01@10.0.0.1:30303", "enode://abc02@10.0.0.2:30303"},
		splitBootnodes(req.Vars["bootnodes"].(string)))

	got, err := f.manager.GetNode(ctx, ch.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "miner2", got.Name)
	assert.Contains(t, f.events.types(), events.EventNodeCreated)
}

func splitBootnodes(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestCreateNodeValidation(t *testing.T) {
	f := newFixture(t, false)
	ch := f.createChain(t, f.createCloud(t))

	tests := []struct {
		name string
		req  NodeRequest
	}{
		{name: "missing flavour", req: NodeRequest{Name: "n", Type: "miner"}},
		{name: "missing name", req: NodeRequest{Flavour: "m1.small", Type: "miner"}},
		{name: "missing type", req: NodeRequest{Flavour: "m1.small", Name: "n"}},
		{name: "second controller", req: NodeRequest{Flavour: "m1.small", Name: "n", Type: types.NodeTypeController}},
		{name: "unsupported type", req: NodeRequest{Flavour: "m1.small", Name: "n", Type: "validator"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.CreateNode(context.Background(), ch.ID, tt.req)
			assert.True(t, errors.Is(err, types.ErrValidation), "got %v", err)
		})
	}
	assert.Len(t, f.cloud.added, 1)
}

func TestCreateNodeUnknownChain(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.manager.CreateNode(context.Background(), "missing",
		NodeRequest{Flavour: "m1.small", Name: "n", Type: "miner"})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestCreateNodeCloudFailure(t *testing.T) {
	f := newFixture(t, false)
	ch := f.createChain(t, f.createCloud(t))
	f.cloud.failAdd = cloud.ProviderError("run server", errors.New("quota exceeded"))

	_, err := f.manager.CreateNode(context.Background(), ch.ID,
		NodeRequest{Flavour: "m1.small", Name: "n", Type: "miner"})
	assert.True(t, errors.Is(err, types.ErrCloudProvider))

	var orphaned *types.OrphanedResourcesError
	assert.False(t, errors.As(err, &orphaned))
}

func TestCreateNodeInstanceAllocatedWithError(t *testing.T) {
	tests := []struct {
		name       string
		compensate bool
		released   []string
	}{
		{name: "without compensation"},
		{name: "with compensation", compensate: true, released: []string{"vm-stuck"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.compensate)
			ch := f.createChain(t, f.createCloud(t))
			f.cloud.stuckID = "vm-stuck"
			f.cloud.failAdd = cloud.ProviderError("server vm-stuck has no address", errors.New("timeout"))

			_, err := f.manager.CreateNode(context.Background(), ch.ID,
				NodeRequest{Flavour: "m1.small", Name: "n", Type: "miner"})
			assert.True(t, errors.Is(err, types.ErrCloudProvider))

			var orphaned *types.OrphanedResourcesError
			require.True(t, errors.As(err, &orphaned))
			assert.Equal(t, []string{"vm-stuck"}, orphaned.Instances)
			assert.Equal(t, tt.released, orphaned.Released)
			assert.Equal(t, tt.released, f.cloud.deleted)
			if !tt.compensate {
				assert.Contains(t, f.events.types(), events.EventInstancesOrphaned)
			}
		})
	}
}

func TestCreateChainControllerAllocatedWithError(t *testing.T) {
	f := newFixture(t, true)
	cloudID := f.createCloud(t)
	f.cloud.stuckID = "vm-stuck"
	f.cloud.failAdd = cloud.ProviderError("server vm-stuck has no address", errors.New("timeout"))

	_, err := f.manager.CreateChain(context.Background(), cloudID, "net1",
		map[string]any{"mining_account": "0xabc"}, f.cloudConfig())

	var orphaned *types.OrphanedResourcesError
	require.True(t, errors.As(err, &orphaned))
	assert.Equal(t, []string{"vm-stuck"}, orphaned.Instances)
	assert.Equal(t, []string{"vm-stuck"}, orphaned.Released)
	assert.Equal(t, 0, f.chainCount(t))
}

func TestDeleteControllerRejected(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))

	err := f.manager.DeleteNode(ctx, ch.ID, "vm-1")
	assert.True(t, errors.Is(err, types.ErrControllerDeletion))
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Empty(t, f.cloud.deleted)

	_, err = f.manager.GetNode(ctx, ch.ID, "vm-1")
	assert.NoError(t, err)
}

func TestDeleteNode(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))
	node, err := f.manager.CreateNode(ctx, ch.ID, NodeRequest{Flavour: "m1.small", Name: "miner1", Type: "miner"})
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteNode(ctx, ch.ID, node.ID))
	assert.Equal(t, []string{node.ID}, f.cloud.deleted)

	_, err = f.manager.GetNode(ctx, ch.ID, node.ID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Contains(t, f.events.types(), events.EventNodeDeleted)
}

func TestDeleteNodeCloudFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))
	node, err := f.manager.CreateNode(ctx, ch.ID, NodeRequest{Flavour: "m1.small", Name: "miner1", Type: "miner"})
	require.NoError(t, err)
	f.cloud.failDelete[node.ID] = cloud.ProviderError("delete server", errors.New("timeout"))

	err = f.manager.DeleteNode(ctx, ch.ID, node.ID)
	assert.True(t, errors.Is(err, types.ErrCloudProvider))

	_, err = f.manager.GetNode(ctx, ch.ID, node.ID)
	assert.NoError(t, err)
}

func TestDeleteChainSweepsDespiteFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))
	for _, name := range []string{"miner1", "miner2"} {
		_, err := f.manager.CreateNode(ctx, ch.ID, NodeRequest{Flavour: "m1.small", Name: name, Type: "miner"})
		require.NoError(t, err)
	}
	f.cloud.failDelete["vm-2"] = cloud.ProviderError("delete server", errors.New("timeout"))

	require.NoError(t, f.manager.DeleteChain(ctx, ch.ID))
	assert.ElementsMatch(t, []string{"vm-1", "vm-2", "vm-3"}, f.cloud.deleted)

	_, err := f.manager.GetChain(ctx, ch.ID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = f.manager.GetNodes(ctx, ch.ID, storage.ListOptions{})
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Contains(t, f.events.types(), events.EventInstancesOrphaned)
	assert.Contains(t, f.events.types(), events.EventChainDeleted)
}

func TestDeleteChainUnknown(t *testing.T) {
	f := newFixture(t, false)
	err := f.manager.DeleteChain(context.Background(), "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestCreateCloudValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.manager.CreateCloud(ctx, "openstack", "", nil, nil)
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = f.manager.CreateCloud(ctx, "vsphere", "dc1", nil, nil)
	assert.True(t, errors.Is(err, types.ErrValidation))

	clouds, err := f.manager.GetClouds(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, clouds)
}

func TestCloudQueries(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	cloudID := f.createCloud(t)

	flavours, err := f.manager.GetNodeFlavours(ctx, cloudID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1.small", "m1.large"}, flavours)

	networks, err := f.manager.GetNetworks(ctx, cloudID)
	require.NoError(t, err)
	assert.Equal(t, []string{"private"}, networks)

	instances, err := f.manager.GetInstances(ctx, cloudID)
	require.NoError(t, err)
	assert.Empty(t, instances)

	_, err = f.manager.GetNodeFlavours(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	assert.Equal(t, []string{"openstack"}, f.manager.GetCloudTypes())
	assert.Equal(t, []string{"miner"}, f.manager.GetBackendInfo()["ethereum"].NodeTypes)
}

func TestNodeAccess(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))

	access, err := f.manager.NodeAccess(ctx, ch.ID, "vm-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", access.NodeIP)
	assert.Equal(t, "203.0.113.10", access.JumpboxIP)
	assert.True(t, security.IsEncrypted(access.NodeKey))
	assert.True(t, security.IsEncrypted(access.JumpboxKey))

	_, err = f.manager.NodeAccess(ctx, ch.ID, "vm-9")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestConcurrentNodeCreation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ch := f.createChain(t, f.createCloud(t))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.manager.CreateNode(ctx, ch.ID,
				NodeRequest{Flavour: "m1.small", Name: fmt.Sprintf("miner%d", i), Type: "miner"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	nodes, err := f.manager.GetNodes(ctx, ch.ID, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, nodes, 5)

	// each provisioning run saw every node committed before it
	for i, req := range f.provisioner.requests[1:] {
		assert.Len(t, splitBootnodes(req.Vars["bootnodes"].(string)), i+1)
	}
}
