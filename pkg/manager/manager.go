package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/events"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/metrics"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/tracing"
	"github.com/cuemby/catena/pkg/types"
	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultChainBackend is the backend every new chain is created with
const DefaultChainBackend = "ethereum"

// KeyManager generates and protects node key pairs
type KeyManager interface {
	cloud.KeyEncrypter
	GenerateKeyPair() (publicKey string, encryptedPrivateKey string, err error)
}

// Config holds the dependencies of a Manager
type Config struct {
	Store   storage.Store
	Secrets KeyManager
	Clouds  *cloud.Registry
	Chains  *chain.Registry
	// Events receives an event after every committed change; nil discards
	Events events.Publisher
	// Owner is recorded on every chain created by this manager
	Owner string
	// CompensateOnFailure deletes instances allocated by a failed operation
	CompensateOnFailure bool
}

// Manager orchestrates clouds, chains and nodes.
//
// Every mutating call runs in a single store transaction; cloud and
// provisioner calls inside it are sequential. Mutations of one chain are
// serialized by a per-chain lock.
type Manager struct {
	store      storage.Store
	secrets    KeyManager
	clouds     *cloud.Registry
	chains     *chain.Registry
	events     events.Publisher
	owner      string
	compensate bool

	chainLocks *kmutex.Kmutex
	logger     zerolog.Logger
}

// NewManager creates a Manager from its dependencies
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.Secrets == nil || cfg.Clouds == nil || cfg.Chains == nil {
		return nil, fmt.Errorf("%w: manager requires a store, secrets and both backend registries", types.ErrConfig)
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Discard
	}
	return &Manager{
		store:      cfg.Store,
		secrets:    cfg.Secrets,
		clouds:     cfg.Clouds,
		chains:     cfg.Chains,
		events:     publisher,
		owner:      cfg.Owner,
		compensate: cfg.CompensateOnFailure,
		chainLocks: kmutex.New(),
		logger:     log.WithComponent("manager"),
	}, nil
}

// begin opens a span for op and returns a function that records the
// outcome in the span and the operation metrics
func (m *Manager) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	timer := metrics.NewTimer()
	ctx, span := tracing.Start(ctx, "manager."+op, attrs...)
	return ctx, func(err error) {
		metrics.ObserveOperation(op, timer, err)
		tracing.End(span, err)
	}
}

func (m *Manager) lockChain(chainID string) func() {
	m.chainLocks.Lock(chainID)
	return func() { m.chainLocks.Unlock(chainID) }
}

// failed reports a mutating call that was rolled back
func (m *Manager) failed(op string, err error, metadata map[string]string) {
	var orphaned *types.OrphanedResourcesError
	if errors.As(err, &orphaned) {
		// reported separately with the instance list
		return
	}
	m.logger.Error().Err(err).Str("operation", op).Fields(toFields(metadata)).Msg("Operation failed")
	metadata = withEntry(metadata, "operation", op)
	m.events.Publish(events.New(events.EventOperationFailed, err.Error(), metadata))
}

// orphaned builds the error returned when a call failed after the cloud had
// allocated instances, releasing them first when compensation is enabled
func (m *Manager) orphaned(ctx context.Context, c *types.Cloud, backend cloud.Backend, ch *types.Chain, instances []string, cause error) error {
	oe := &types.OrphanedResourcesError{
		CloudID:   c.ID,
		Instances: append([]string(nil), instances...),
		Err:       cause,
	}

	if m.compensate {
		ctx = context.WithoutCancel(ctx)
		for _, id := range instances {
			if err := backend.DeleteNode(ctx, ch, id); err != nil {
				m.logger.Warn().Err(err).Str("instance_id", id).Msg("Failed to release orphaned instance")
				continue
			}
			oe.Released = append(oe.Released, id)
		}
	}

	leaked := oe.Leaked()
	logger := log.WithChainID(log.WithCloudID(m.logger, c.ID), ch.ID)
	logger.Error().
		Err(cause).
		Strs("instances", oe.Instances).
		Strs("released", oe.Released).
		Msg("Operation failed after allocating cloud instances")

	if len(leaked) > 0 {
		metrics.OrphanedInstancesTotal.WithLabelValues(c.Type).Add(float64(len(leaked)))
		m.events.Publish(events.New(events.EventInstancesOrphaned, cause.Error(), map[string]string{
			"cloud_id":  c.ID,
			"chain_id":  ch.ID,
			"instances": fmt.Sprint(leaked),
		}))
	}
	return oe
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toFields(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func withEntry(m map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}
