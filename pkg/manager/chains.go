package manager

import (
	"context"
	"fmt"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/events"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/metrics"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// CreateChain creates a chain on a cloud and provisions its controller node.
//
// The whole sequence runs in one transaction: nothing is committed unless
// the controller was provisioned. A failure after the controller VM was
// allocated returns an *types.OrphanedResourcesError.
func (m *Manager) CreateChain(ctx context.Context, cloudID, name string, chainConfig, cloudConfig map[string]any) (view *types.ChainView, err error) {
	ctx, end := m.begin(ctx, "create_chain",
		attribute.String("cloud.id", cloudID),
		attribute.String("chain.name", name))
	defer func() { end(err) }()

	if name == "" {
		return nil, fmt.Errorf("%w: must specify a name", types.ErrValidation)
	}

	ch := &types.Chain{
		ID:           uuid.NewString(),
		Name:         name,
		ChainBackend: DefaultChainBackend,
		CloudID:      cloudID,
		Status:       types.ChainStatusCreating,
		ChainConfig:  cloneMap(chainConfig),
		CloudConfig:  cloneMap(cloudConfig),
		Owner:        m.owner,
	}
	logger := log.WithChainID(log.WithCloudID(m.logger, cloudID), ch.ID)

	var (
		c         *types.Cloud
		backend   cloud.Backend
		allocated []string
	)
	err = m.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		if c, err = tx.GetCloud(cloudID); err != nil {
			return err
		}
		if backend, err = m.clouds.Backend(c); err != nil {
			return err
		}
		chainBackend, err := m.chains.Backend(ch.ChainBackend)
		if err != nil {
			return err
		}

		if err := tx.CreateChain(ch); err != nil {
			return err
		}
		if err := chainBackend.InitializeChain(ch); err != nil {
			return err
		}
		if err := backend.InitializeCloud(ctx, ch); err != nil {
			return err
		}
		if err := tx.UpdateChain(ch); err != nil {
			return err
		}

		cfg, err := cloud.ParseChainCloudConfig(ch)
		if err != nil {
			return err
		}
		publicKey, encryptedKey, err := m.secrets.GenerateKeyPair()
		if err != nil {
			return err
		}

		controllerName := ch.Name + "_controller"
		instanceID, ip, err := backend.AddNode(ctx, publicKey, cfg.ControllerFlavour, controllerName, ch)
		if instanceID != "" {
			allocated = append(allocated, instanceID)
		}
		if err != nil {
			return err
		}
		logger.Info().Str("instance_id", instanceID).Str("ip", ip).Msg("Controller instance created")

		controller := &types.Node{
			ID:      instanceID,
			Name:    controllerName,
			ChainID: ch.ID,
			Type:    types.NodeTypeController,
			IP:      ip,
			SSHKey:  encryptedKey,
		}
		if err := tx.CreateNode(controller); err != nil {
			return err
		}

		timer := metrics.NewTimer()
		peerID, err := chainBackend.ProvisionController(ctx, chain.ProvisionRequest{
			Chain:     ch,
			Cloud:     c,
			Node:      controller,
			JumpboxIP: cfg.JumpboxIP,
		})
		timer.ObserveDurationVec(metrics.ProvisionDuration, types.NodeTypeController)
		if err != nil {
			return err
		}
		controller.ChainConfig = chainBackend.NodeConfig(peerID)
		if err := tx.UpdateNode(controller); err != nil {
			return err
		}

		ch.Status = types.ChainStatusActive
		return tx.UpdateChain(ch)
	})
	if err != nil {
		if len(allocated) > 0 {
			err = m.orphaned(ctx, c, backend, ch, allocated, err)
		}
		m.failed("create_chain", err, map[string]string{"cloud_id": cloudID, "chain_name": name})
		return nil, err
	}

	logger.Info().Str("name", name).Msg("Chain created")
	m.events.Publish(events.New(events.EventChainCreated, "chain "+name+" created", map[string]string{
		"chain_id": ch.ID,
		"cloud_id": cloudID,
	}))
	return ch.View(), nil
}

// DeleteChain releases every node of a chain and removes it.
//
// Instance deletion is best-effort: failures are logged and counted and the
// sweep continues. The chain and its node records are removed regardless.
func (m *Manager) DeleteChain(ctx context.Context, chainID string) (err error) {
	ctx, end := m.begin(ctx, "delete_chain", attribute.String("chain.id", chainID))
	defer func() { end(err) }()

	unlock := m.lockChain(chainID)
	defer unlock()

	logger := log.WithChainID(m.logger, chainID)
	var leaked []string
	err = m.store.Update(ctx, func(tx storage.Tx) error {
		leaked = nil
		ch, err := tx.GetChain(chainID)
		if err != nil {
			return err
		}
		c, err := tx.GetCloud(ch.CloudID)
		if err != nil {
			return err
		}
		backend, err := m.clouds.Backend(c)
		if err != nil {
			return err
		}

		ch.Status = types.ChainStatusDeleting
		if err := tx.UpdateChain(ch); err != nil {
			return err
		}

		nodes, err := tx.ListNodes(chainID, storage.ListOptions{})
		if err != nil {
			return err
		}
		for _, node := range nodes {
			if err := backend.DeleteNode(ctx, ch, node.ID); err != nil {
				logger.Warn().Err(err).Str("node_id", node.ID).Msg("Failed to delete instance")
				metrics.CloudDeleteFailuresTotal.WithLabelValues(c.Type).Inc()
				leaked = append(leaked, node.ID)
				continue
			}
			logger.Debug().Str("node_id", node.ID).Msg("Instance deleted")
		}

		return tx.DeleteChain(chainID)
	})
	if err != nil {
		m.failed("delete_chain", err, map[string]string{"chain_id": chainID})
		return err
	}

	if len(leaked) > 0 {
		m.events.Publish(events.New(events.EventInstancesOrphaned, "instances left behind by chain deletion", map[string]string{
			"chain_id":  chainID,
			"instances": fmt.Sprint(leaked),
		}))
	}
	logger.Info().Int("failed_deletions", len(leaked)).Msg("Chain deleted")
	m.events.Publish(events.New(events.EventChainDeleted, "chain "+chainID+" deleted", map[string]string{
		"chain_id": chainID,
	}))
	return nil
}

// GetChains lists chains
func (m *Manager) GetChains(ctx context.Context, opts storage.ListOptions) ([]*types.ChainView, error) {
	var views []*types.ChainView
	err := m.store.View(ctx, func(tx storage.Tx) error {
		chains, err := tx.ListChains(opts)
		if err != nil {
			return err
		}
		views = make([]*types.ChainView, 0, len(chains))
		for _, ch := range chains {
			views = append(views, ch.View())
		}
		return nil
	})
	return views, err
}

// GetChain returns one chain
func (m *Manager) GetChain(ctx context.Context, chainID string) (*types.ChainView, error) {
	var view *types.ChainView
	err := m.store.View(ctx, func(tx storage.Tx) error {
		ch, err := tx.GetChain(chainID)
		if err != nil {
			return err
		}
		view = ch.View()
		return nil
	})
	return view, err
}
