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
	"go.opentelemetry.io/otel/attribute"
)

// NodeRequest describes a worker node to add to a chain
type NodeRequest struct {
	Flavour string `json:"flavour" yaml:"flavour"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
}

// Validate checks the fields every node request needs
func (r NodeRequest) Validate() error {
	switch {
	case r.Flavour == "":
		return fmt.Errorf("%w: must specify a flavour", types.ErrValidation)
	case r.Name == "":
		return fmt.Errorf("%w: must specify a name", types.ErrValidation)
	case r.Type == "":
		return fmt.Errorf("%w: must specify a node type", types.ErrValidation)
	case r.Type == types.NodeTypeController:
		return fmt.Errorf("%w: a chain has exactly one controller", types.ErrValidation)
	}
	return nil
}

// NodeAccess holds what an operator needs to open a shell on a node.
// Both keys are in their encrypted form.
type NodeAccess struct {
	NodeIP     string
	JumpboxIP  string
	NodeKey    string
	JumpboxKey string
}

// CreateNode adds a worker node to a chain and provisions it against the
// chain's existing peers
func (m *Manager) CreateNode(ctx context.Context, chainID string, req NodeRequest) (view *types.NodeView, err error) {
	ctx, end := m.begin(ctx, "create_node",
		attribute.String("chain.id", chainID),
		attribute.String("node.type", req.Type))
	defer func() { end(err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := m.lockChain(chainID)
	defer unlock()

	logger := log.WithChainID(m.logger, chainID)
	var (
		ch        *types.Chain
		c         *types.Cloud
		backend   cloud.Backend
		node      *types.Node
		allocated []string
	)
	err = m.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		if ch, err = tx.GetChain(chainID); err != nil {
			return err
		}
		controller, err := tx.GetControllerNode(chainID)
		if err != nil {
			return err
		}
		if c, err = tx.GetCloud(ch.CloudID); err != nil {
			return err
		}
		if backend, err = m.clouds.Backend(c); err != nil {
			return err
		}
		chainBackend, err := m.chains.Backend(ch.ChainBackend)
		if err != nil {
			return err
		}
		if !chainBackend.Info().SupportsNodeType(req.Type) {
			return fmt.Errorf("%w: node type %q not supported by %s", types.ErrValidation, req.Type, ch.ChainBackend)
		}
		cfg, err := cloud.ParseChainCloudConfig(ch)
		if err != nil {
			return err
		}
		peers, err := tx.ListNodes(chainID, storage.ListOptions{})
		if err != nil {
			return err
		}

		publicKey, encryptedKey, err := m.secrets.GenerateKeyPair()
		if err != nil {
			return err
		}
		instanceID, ip, err := backend.AddNode(ctx, publicKey, req.Flavour, req.Name, ch)
		if instanceID != "" {
			allocated = append(allocated, instanceID)
		}
		if err != nil {
			return err
		}
		logger.Info().Str("instance_id", instanceID).Str("ip", ip).Msg("Node instance created")

		node = &types.Node{
			ID:      instanceID,
			Name:    req.Name,
			ChainID: chainID,
			Type:    req.Type,
			IP:      ip,
			SSHKey:  encryptedKey,
		}
		if err := tx.CreateNode(node); err != nil {
			return err
		}

		timer := metrics.NewTimer()
		peerID, err := chainBackend.ProvisionNode(ctx, chain.ProvisionRequest{
			Chain:        ch,
			Cloud:        c,
			Node:         node,
			Peers:        peers,
			JumpboxIP:    cfg.JumpboxIP,
			ControllerIP: controller.IP,
		})
		timer.ObserveDurationVec(metrics.ProvisionDuration, req.Type)
		if err != nil {
			return err
		}
		node.ChainConfig = chainBackend.NodeConfig(peerID)
		return tx.UpdateNode(node)
	})
	if err != nil {
		if len(allocated) > 0 {
			err = m.orphaned(ctx, c, backend, ch, allocated, err)
		}
		m.failed("create_node", err, map[string]string{"chain_id": chainID, "node_name": req.Name})
		return nil, err
	}

	nodeLogger := log.WithNodeID(logger, node.ID)
	nodeLogger.Info().Str("type", node.Type).Msg("Node created")
	m.events.Publish(events.New(events.EventNodeCreated, "node "+node.Name+" created", map[string]string{
		"chain_id": chainID,
		"node_id":  node.ID,
	}))
	return node.View(), nil
}

// DeleteNode releases a worker node's instance and removes its record.
// The controller can only be removed together with its chain.
func (m *Manager) DeleteNode(ctx context.Context, chainID, nodeID string) (err error) {
	ctx, end := m.begin(ctx, "delete_node",
		attribute.String("chain.id", chainID),
		attribute.String("node.id", nodeID))
	defer func() { end(err) }()

	unlock := m.lockChain(chainID)
	defer unlock()

	err = m.store.Update(ctx, func(tx storage.Tx) error {
		ch, err := tx.GetChain(chainID)
		if err != nil {
			return err
		}
		node, err := tx.GetNode(chainID, nodeID)
		if err != nil {
			return err
		}
		if node.IsController() {
			return types.ErrControllerDeletion
		}
		c, err := tx.GetCloud(ch.CloudID)
		if err != nil {
			return err
		}
		backend, err := m.clouds.Backend(c)
		if err != nil {
			return err
		}
		if err := backend.DeleteNode(ctx, ch, nodeID); err != nil {
			metrics.CloudDeleteFailuresTotal.WithLabelValues(c.Type).Inc()
			return err
		}
		return tx.DeleteNode(chainID, nodeID)
	})
	if err != nil {
		m.failed("delete_node", err, map[string]string{"chain_id": chainID, "node_id": nodeID})
		return err
	}

	logger := log.WithNodeID(log.WithChainID(m.logger, chainID), nodeID)
	logger.Info().Msg("Node deleted")
	m.events.Publish(events.New(events.EventNodeDeleted, "node "+nodeID+" deleted", map[string]string{
		"chain_id": chainID,
		"node_id":  nodeID,
	}))
	return nil
}

// GetNodes lists the nodes of a chain
func (m *Manager) GetNodes(ctx context.Context, chainID string, opts storage.ListOptions) ([]*types.NodeView, error) {
	var views []*types.NodeView
	err := m.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetChain(chainID); err != nil {
			return err
		}
		nodes, err := tx.ListNodes(chainID, opts)
		if err != nil {
			return err
		}
		views = make([]*types.NodeView, 0, len(nodes))
		for _, n := range nodes {
			views = append(views, n.View())
		}
		return nil
	})
	return views, err
}

// GetNode returns one node of a chain
func (m *Manager) GetNode(ctx context.Context, chainID, nodeID string) (*types.NodeView, error) {
	var view *types.NodeView
	err := m.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetChain(chainID); err != nil {
			return err
		}
		node, err := tx.GetNode(chainID, nodeID)
		if err != nil {
			return err
		}
		view = node.View()
		return nil
	})
	return view, err
}

// NodeAccess returns the addresses and encrypted keys needed to reach a node
// through its chain's jumpbox
func (m *Manager) NodeAccess(ctx context.Context, chainID, nodeID string) (*NodeAccess, error) {
	var access *NodeAccess
	err := m.store.View(ctx, func(tx storage.Tx) error {
		ch, err := tx.GetChain(chainID)
		if err != nil {
			return err
		}
		node, err := tx.GetNode(chainID, nodeID)
		if err != nil {
			return err
		}
		cfg, err := cloud.ParseChainCloudConfig(ch)
		if err != nil {
			return err
		}
		access = &NodeAccess{
			NodeIP:     node.IP,
			JumpboxIP:  cfg.JumpboxIP,
			NodeKey:    node.SSHKey,
			JumpboxKey: cfg.JumpboxKey,
		}
		return nil
	})
	return access, err
}
