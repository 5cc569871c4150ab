package manager

import (
	"context"
	"fmt"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/events"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// CreateCloud registers a cloud provider account
func (m *Manager) CreateCloud(ctx context.Context, cloudType, name string, authentication, config map[string]any) (view *types.CloudView, err error) {
	ctx, end := m.begin(ctx, "create_cloud", attribute.String("cloud.type", cloudType))
	defer func() { end(err) }()

	if name == "" {
		return nil, fmt.Errorf("%w: must specify a name", types.ErrValidation)
	}
	if !m.clouds.Has(cloudType) {
		return nil, fmt.Errorf("%w: unsupported cloud type %q", types.ErrValidation, cloudType)
	}

	c := &types.Cloud{
		ID:             uuid.NewString(),
		Type:           cloudType,
		Name:           name,
		Authentication: cloneMap(authentication),
		CloudConfig:    cloneMap(config),
	}
	err = m.store.Update(ctx, func(tx storage.Tx) error {
		return tx.CreateCloud(c)
	})
	if err != nil {
		m.failed("create_cloud", err, map[string]string{"cloud_type": cloudType})
		return nil, err
	}

	m.logger.Info().Str("cloud_id", c.ID).Str("cloud_type", cloudType).Msg("Cloud created")
	m.events.Publish(events.New(events.EventCloudCreated, "cloud "+name+" created", map[string]string{
		"cloud_id":   c.ID,
		"cloud_type": cloudType,
	}))
	return c.View(), nil
}

// GetClouds lists clouds
func (m *Manager) GetClouds(ctx context.Context, opts storage.ListOptions) ([]*types.CloudView, error) {
	var views []*types.CloudView
	err := m.store.View(ctx, func(tx storage.Tx) error {
		clouds, err := tx.ListClouds(opts)
		if err != nil {
			return err
		}
		views = make([]*types.CloudView, 0, len(clouds))
		for _, c := range clouds {
			views = append(views, c.View())
		}
		return nil
	})
	return views, err
}

// GetCloud returns one cloud
func (m *Manager) GetCloud(ctx context.Context, cloudID string) (*types.CloudView, error) {
	c, err := m.loadCloud(ctx, cloudID)
	if err != nil {
		return nil, err
	}
	return c.View(), nil
}

// GetCloudTypes lists the supported cloud providers
func (m *Manager) GetCloudTypes() []string {
	return m.clouds.Types()
}

// GetBackendInfo describes the supported chain backends
func (m *Manager) GetBackendInfo() map[string]chain.BackendInfo {
	return m.chains.Info()
}

// GetNodeFlavours lists the VM sizes offered by a cloud
func (m *Manager) GetNodeFlavours(ctx context.Context, cloudID string) ([]string, error) {
	return m.queryCloud(ctx, "get_node_flavours", cloudID, cloud.Backend.NodeFlavours)
}

// GetNetworks lists the networks visible in a cloud
func (m *Manager) GetNetworks(ctx context.Context, cloudID string) ([]string, error) {
	return m.queryCloud(ctx, "get_networks", cloudID, cloud.Backend.Networks)
}

// GetInstances lists the instances running in a cloud
func (m *Manager) GetInstances(ctx context.Context, cloudID string) ([]string, error) {
	return m.queryCloud(ctx, "get_instances", cloudID, cloud.Backend.Instances)
}

func (m *Manager) queryCloud(ctx context.Context, op, cloudID string, query func(cloud.Backend, context.Context) ([]string, error)) (out []string, err error) {
	ctx, end := m.begin(ctx, op, attribute.String("cloud.id", cloudID))
	defer func() { end(err) }()

	c, err := m.loadCloud(ctx, cloudID)
	if err != nil {
		return nil, err
	}
	backend, err := m.clouds.Backend(c)
	if err != nil {
		return nil, err
	}
	out, err = query(backend, ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (m *Manager) loadCloud(ctx context.Context, cloudID string) (*types.Cloud, error) {
	var c *types.Cloud
	err := m.store.View(ctx, func(tx storage.Tx) error {
		var err error
		c, err = tx.GetCloud(cloudID)
		return err
	})
	return c, err
}
