package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/catena/pkg/types"
)

// ProvisionRequest carries everything a chain backend needs to configure
// one node
type ProvisionRequest struct {
	Chain *types.Chain
	Cloud *types.Cloud
	Node  *types.Node
	// Peers are the chain's other nodes, used for peer discovery
	Peers        []*types.Node
	JumpboxIP    string
	ControllerIP string
}

// BackendInfo advertises what a chain backend supports
type BackendInfo struct {
	ChainTypes []string `json:"chain_types"`
	NodeTypes  []string `json:"node_types"`
}

// SupportsNodeType reports whether nodeType is a worker role of the backend
func (i BackendInfo) SupportsNodeType(nodeType string) bool {
	for _, t := range i.NodeTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// Backend is the set of operations every blockchain type implements
type Backend interface {
	// InitializeChain validates chain_config and fills in generated values
	InitializeChain(chain *types.Chain) error
	// ProvisionController configures the controller node and returns its
	// peer identifier
	ProvisionController(ctx context.Context, req ProvisionRequest) (string, error)
	// ProvisionNode configures a worker node and returns its peer identifier
	ProvisionNode(ctx context.Context, req ProvisionRequest) (string, error)
	// NodeConfig returns the per-node chain_config recording a peer identifier
	NodeConfig(peerID string) map[string]any
	Info() BackendInfo
}

// Registry maps a chain_backend name to its implementation
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under name
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
}

// Backend returns the backend registered under name
func (r *Registry) Backend(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported chain backend %q", types.ErrConfig, name)
	}
	return b, nil
}

// Names returns the registered backend names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Info returns the capabilities of every registered backend keyed by name
func (r *Registry) Info() map[string]BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BackendInfo, len(r.backends))
	for name, b := range r.backends {
		out[name] = b.Info()
	}
	return out
}
