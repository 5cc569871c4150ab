package cloud

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/catena/pkg/types"
)

// Backend is the set of operations every cloud provider implements
type Backend interface {
	NodeFlavours(ctx context.Context) ([]string, error)
	Networks(ctx context.Context) ([]string, error)
	Instances(ctx context.Context) ([]string, error)

	// InitializeCloud validates the chain's cloud_config, encrypts raw key
	// material and records discovered provider facts into it
	InitializeCloud(ctx context.Context, chain *types.Chain) error

	// AddNode creates a VM reachable from the jumpbox with publicKey
	// authorized and blocks until it is ready
	AddNode(ctx context.Context, publicKey, flavour, name string, chain *types.Chain) (instanceID string, privateIP string, err error)

	// DeleteNode releases the VM and the resources it exclusively owns.
	// An instance that no longer exists is not an error.
	DeleteNode(ctx context.Context, chain *types.Chain, instanceID string) error
}

// KeyEncrypter encrypts private key material for storage and opens it again
type KeyEncrypter interface {
	EncryptPrivateKey(privateKey string) (string, error)
	Decrypt(blob string) ([]byte, error)
}

// Environment carries process-wide settings handed to every backend
type Environment struct {
	Secrets   KeyEncrypter
	BaseImage string
}

// Factory builds a backend for a stored cloud
type Factory func(cloud *types.Cloud, env Environment) (Backend, error)

// Registry maps a cloud type to its backend factory
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	env       Environment
}

// NewRegistry creates an empty registry
func NewRegistry(env Environment) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		env:       env,
	}
}

// Register adds a factory for a cloud type, replacing any previous one
func (r *Registry) Register(cloudType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[cloudType] = f
}

// Has reports whether a cloud type is registered
func (r *Registry) Has(cloudType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[cloudType]
	return ok
}

// Types returns the registered cloud types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Backend returns the backend for a cloud
func (r *Registry) Backend(cloud *types.Cloud) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[cloud.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported cloud type %q", types.ErrConfig, cloud.Type)
	}
	return f(cloud, r.env)
}

// ProviderError classifies an error returned by a provider SDK
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", types.ErrCloudProvider, op, err)
}
